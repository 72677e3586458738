package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

// Default caps of the suggestion lists.
const (
	DefaultPriorityLimit = 10
	DefaultOptionalLimit = 5
)

const (
	lowGPAThreshold         = 2.5
	manyRetakesThreshold    = 3
	expectedCoursesPerTerm  = 5
	behindScheduleTolerance = 0.7
)

type offeringReader interface {
	ListOfferings(ctx context.Context, periodID string) ([]models.SectionDetail, error)
}

// SuggestionContext is the student state suggestions are computed against.
type SuggestionContext struct {
	StudentID       string
	LastGPA         float64
	MaxCredits      int
	CurrentCredits  int
	CurrentSemester int
	Standing        CourseStanding
	Registered      map[string]struct{}
}

// SuggestionLimits caps the priority and optional lists.
type SuggestionLimits struct {
	Priority int
	Optional int
}

func (l SuggestionLimits) withDefaults() SuggestionLimits {
	if l.Priority <= 0 {
		l.Priority = DefaultPriorityLimit
	}
	if l.Optional <= 0 {
		l.Optional = DefaultOptionalLimit
	}
	return l
}

// creditBudget tracks the credits left while suggestions are picked.
type creditBudget struct {
	remaining int
}

func (b *creditBudget) spend(credits int) {
	b.remaining -= credits
}

func (b *creditBudget) fits(credits int) bool {
	return credits <= b.remaining
}

func (b *creditBudget) exhausted() bool {
	return b.remaining <= 0
}

// BuildSuggestion ranks the offerings for one student. Offerings are expected in semester order.
func BuildSuggestion(sc SuggestionContext, offerings []models.SectionDetail, limits SuggestionLimits) models.Suggestion {
	limits = limits.withDefaults()
	budget := &creditBudget{remaining: sc.MaxCredits - sc.CurrentCredits}

	suggestion := models.Suggestion{
		StudentID:        sc.StudentID,
		CurrentSemester:  sc.CurrentSemester,
		MaxCredits:       sc.MaxCredits,
		CurrentCredits:   sc.CurrentCredits,
		RemainingCredits: max(budget.remaining, 0),
	}

	picked := make(map[string]struct{})
	suggestion.Priority = priorityCourses(sc, offerings, limits.Priority, picked, budget)
	if !budget.exhausted() {
		suggestion.Optional = optionalCourses(sc, offerings, limits.Optional, picked, budget)
	}
	suggestion.Warnings = suggestionWarnings(sc)
	return suggestion
}

// priorityCourses lists retakes, then courses of the current or earlier semesters. Each course
// contributes only its first open section; the other sections of that course are skipped.
func priorityCourses(sc SuggestionContext, offerings []models.SectionDetail, limit int, picked map[string]struct{}, budget *creditBudget) []models.SuggestedSection {
	var out []models.SuggestedSection
	add := func(section models.SectionDetail, reason models.SuggestionReason) {
		picked[section.CourseID] = struct{}{}
		budget.spend(section.Course.Credits)
		out = append(out, suggestedSection(section, reason))
	}

	for _, failed := range sc.Standing.Failed {
		if len(out) >= limit {
			return out
		}
		if _, registered := sc.Registered[failed.CourseID]; registered {
			continue
		}
		if _, done := picked[failed.CourseID]; done {
			continue
		}
		if section, ok := firstOpenSection(offerings, failed.CourseID); ok {
			add(section, models.ReasonRetake)
		}
	}

	for _, section := range offerings {
		if len(out) >= limit {
			break
		}
		if section.Course.Semester > sc.CurrentSemester || !eligible(sc, section, picked) {
			continue
		}
		add(section, models.ReasonRequired)
	}
	return out
}

func optionalCourses(sc SuggestionContext, offerings []models.SectionDetail, limit int, picked map[string]struct{}, budget *creditBudget) []models.SuggestedSection {
	var out []models.SuggestedSection
	for _, section := range offerings {
		if len(out) >= limit {
			break
		}
		if section.Course.Semester <= sc.CurrentSemester || !eligible(sc, section, picked) {
			continue
		}
		if !budget.fits(section.Course.Credits) {
			continue
		}
		picked[section.CourseID] = struct{}{}
		budget.spend(section.Course.Credits)
		out = append(out, suggestedSection(section, models.ReasonOptional))
	}
	return out
}

// eligible excludes passed, registered and already picked courses as well as full sections.
func eligible(sc SuggestionContext, section models.SectionDetail, picked map[string]struct{}) bool {
	if !section.HasSeat() || sc.Standing.HasPassed(section.CourseID) {
		return false
	}
	if _, ok := sc.Registered[section.CourseID]; ok {
		return false
	}
	_, ok := picked[section.CourseID]
	return !ok
}

func firstOpenSection(offerings []models.SectionDetail, courseID string) (models.SectionDetail, bool) {
	for _, section := range offerings {
		if section.CourseID == courseID && section.HasSeat() {
			return section, true
		}
	}
	return models.SectionDetail{}, false
}

func suggestedSection(section models.SectionDetail, reason models.SuggestionReason) models.SuggestedSection {
	return models.SuggestedSection{
		SectionID:   section.ID,
		SectionName: section.Name,
		CourseID:    section.CourseID,
		CourseCode:  section.Course.Code,
		CourseName:  section.Course.Name,
		Credits:     section.Course.Credits,
		Semester:    section.Course.Semester,
		SeatsLeft:   section.Capacity - section.EnrolledCount,
		Reason:      reason,
	}
}

func suggestionWarnings(sc SuggestionContext) []models.SuggestionWarning {
	var warnings []models.SuggestionWarning
	if sc.LastGPA < lowGPAThreshold {
		warnings = append(warnings, models.SuggestionWarning{
			Type:    models.WarningLowGPA,
			Message: fmt.Sprintf("last term GPA %.2f is below average, consider a lighter credit load", sc.LastGPA),
		})
	}
	if n := len(sc.Standing.Failed); n >= manyRetakesThreshold {
		warnings = append(warnings, models.SuggestionWarning{
			Type:    models.WarningManyRetakes,
			Message: fmt.Sprintf("%d courses still need to be retaken", n),
		})
	}
	expected := float64(sc.CurrentSemester*expectedCoursesPerTerm) * behindScheduleTolerance
	if float64(len(sc.Standing.Passed)) < expected {
		warnings = append(warnings, models.SuggestionWarning{
			Type:    models.WarningBehindSchedule,
			Message: "study progress is behind target, consider consulting your academic advisor",
		})
	}
	return warnings
}

// RecommendationService suggests sections for a student's registration in the active period.
type RecommendationService struct {
	students      studentReader
	registrations registrationReader
	offerings     offeringReader
	performance   *PerformanceService
	calendar      *CalendarService
	limits        SuggestionLimits
	logger        *zap.Logger
}

// NewRecommendationService constructs RecommendationService.
func NewRecommendationService(
	students studentReader,
	registrations registrationReader,
	offerings offeringReader,
	performance *PerformanceService,
	calendar *CalendarService,
	limits SuggestionLimits,
	logger *zap.Logger,
) *RecommendationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationService{
		students:      students,
		registrations: registrations,
		offerings:     offerings,
		performance:   performance,
		calendar:      calendar,
		limits:        limits.withDefaults(),
		logger:        logger,
	}
}

// Suggest builds the suggestion of one student.
func (s *RecommendationService) Suggest(ctx context.Context, studentID string) (*models.Suggestion, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("student", studentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	snap, err := s.calendar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	period, err := snap.RequireActivePeriod()
	if err != nil {
		return nil, err
	}

	records, history, err := s.performance.loadHistory(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	allowance := s.performance.AllowanceFromHistory(history)

	sc := SuggestionContext{
		StudentID:       student.ID,
		LastGPA:         allowance.LastGPA,
		MaxCredits:      allowance.MaxCredits,
		CurrentSemester: StudentSemesterAt(student.EnrollmentYear, snap.Now()),
		Standing:        Standing(records),
		Registered:      map[string]struct{}{},
	}

	reg, err := s.registrations.FindByStudentPeriod(ctx, student.ID, period.ID)
	switch {
	case err == nil:
		lines, err := s.registrations.ListLines(ctx, reg.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration lines")
		}
		sc.CurrentCredits = models.TotalCredits(lines)
		for _, line := range lines {
			sc.Registered[line.CourseID] = struct{}{}
		}
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	offerings, err := s.offerings.ListOfferings(ctx, period.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offerings")
	}

	suggestion := BuildSuggestion(sc, offerings, s.limits)
	s.logger.Debug("suggestion built",
		zap.String("student_id", student.ID),
		zap.Int("priority", len(suggestion.Priority)),
		zap.Int("optional", len(suggestion.Optional)))
	return &suggestion, nil
}
