package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

type gradeReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.GradeRecord, error)
}

type studentPeriodReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.AcademicPeriod, error)
}

// CreditCeiling maps a last term GPA onto the maximum credit load of the next term.
type CreditCeiling struct {
	defaultGPA  float64
	floor       int
	breakpoints []models.CreditBreakpoint
}

// NewCreditCeiling validates a ceiling table. Breakpoints may be given in any order but must not grant fewer
// credits to a higher GPA.
func NewCreditCeiling(rules models.CreditCeilingRules) (CreditCeiling, error) {
	if rules.FloorCredits <= 0 {
		return CreditCeiling{}, fmt.Errorf("credit ceiling floor must be positive, got %d", rules.FloorCredits)
	}
	if rules.DefaultGPA < 0 || rules.DefaultGPA > 4 {
		return CreditCeiling{}, fmt.Errorf("credit ceiling default gpa %.2f outside [0, 4]", rules.DefaultGPA)
	}
	points := append([]models.CreditBreakpoint(nil), rules.Breakpoints...)
	sort.Slice(points, func(i, j int) bool { return points[i].MinGPA > points[j].MinGPA })

	previous := math.MaxInt
	for i, p := range points {
		if p.MinGPA < 0 || p.MinGPA > 4 {
			return CreditCeiling{}, fmt.Errorf("breakpoint gpa %.2f outside [0, 4]", p.MinGPA)
		}
		if i > 0 && p.MinGPA == points[i-1].MinGPA {
			return CreditCeiling{}, fmt.Errorf("duplicate breakpoint gpa %.2f", p.MinGPA)
		}
		if p.MaxCredits > previous {
			return CreditCeiling{}, fmt.Errorf("breakpoint %.2f grants %d credits, more than a higher gpa", p.MinGPA, p.MaxCredits)
		}
		previous = p.MaxCredits
	}
	if rules.FloorCredits > previous {
		return CreditCeiling{}, fmt.Errorf("floor credits %d exceed the lowest breakpoint %d", rules.FloorCredits, previous)
	}
	return CreditCeiling{defaultGPA: rules.DefaultGPA, floor: rules.FloorCredits, breakpoints: points}, nil
}

// DefaultGPA is assumed when a student has no term with data.
func (c CreditCeiling) DefaultGPA() float64 {
	return c.defaultGPA
}

// Max returns the credit ceiling for gpa. Inputs are clamped to [0, 4].
func (c CreditCeiling) Max(gpa float64) int {
	gpa = math.Min(math.Max(gpa, 0), 4)
	for _, p := range c.breakpoints {
		if gpa >= p.MinGPA {
			return p.MaxCredits
		}
	}
	return c.floor
}

// CourseStanding splits a grade history into passed courses and open retakes.
type CourseStanding struct {
	Passed         map[string]struct{}
	PassedCodes    []string
	Failed         []models.GradeRecord
	FailingRecords int
}

// HasPassed reports whether courseID has a passing grade.
func (s CourseStanding) HasPassed(courseID string) bool {
	_, ok := s.Passed[courseID]
	return ok
}

// PerformanceService computes GPA figures and credit allowances from grade history.
type PerformanceService struct {
	grades  gradeReader
	periods studentPeriodReader
	ceiling CreditCeiling
	logger  *zap.Logger
}

// NewPerformanceService constructs PerformanceService.
func NewPerformanceService(grades gradeReader, periods studentPeriodReader, ceiling CreditCeiling, logger *zap.Logger) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{grades: grades, periods: periods, ceiling: ceiling, logger: logger}
}

// Ceiling exposes the configured ceiling function.
func (s *PerformanceService) Ceiling() CreditCeiling {
	return s.ceiling
}

// CreditCeiling returns the maximum credits for lastGPA.
func (s *PerformanceService) CreditCeiling(lastGPA float64) int {
	return s.ceiling.Max(lastGPA)
}

// Grades loads the graded records of a student.
func (s *PerformanceService) Grades(ctx context.Context, studentID string) ([]models.GradeRecord, error) {
	records, err := s.grades.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	return gradedOnly(records), nil
}

// CumulativeGPA returns the credit weighted GPA over every graded course.
func (s *PerformanceService) CumulativeGPA(ctx context.Context, studentID string) (models.GPASummary, error) {
	records, err := s.Grades(ctx, studentID)
	if err != nil {
		return models.GPASummary{}, err
	}
	return SummarizeGPA(records), nil
}

// TermGPAHistory returns one entry per period the student has grades or a registration in, oldest first.
func (s *PerformanceService) TermGPAHistory(ctx context.Context, studentID string) ([]models.TermGPA, error) {
	_, history, err := s.loadHistory(ctx, studentID)
	return history, err
}

func (s *PerformanceService) loadHistory(ctx context.Context, studentID string) ([]models.GradeRecord, []models.TermGPA, error) {
	records, err := s.Grades(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	periods, err := s.periods.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student periods")
	}
	return records, BuildTermHistory(periods, records), nil
}

// CeilingFor returns the credit allowance of a student's next registration.
func (s *PerformanceService) CeilingFor(ctx context.Context, studentID string) (models.CreditAllowance, error) {
	history, err := s.TermGPAHistory(ctx, studentID)
	if err != nil {
		return models.CreditAllowance{}, err
	}
	return s.AllowanceFromHistory(history), nil
}

// AllowanceFromHistory derives the allowance from an already loaded history.
func (s *PerformanceService) AllowanceFromHistory(history []models.TermGPA) models.CreditAllowance {
	gpa, ok := LastTermGPA(history)
	if !ok {
		gpa = s.ceiling.DefaultGPA()
	}
	return models.CreditAllowance{LastGPA: gpa, Defaulted: !ok, MaxCredits: s.ceiling.Max(gpa)}
}

// GradeDistribution counts each letter grade.
func (s *PerformanceService) GradeDistribution(ctx context.Context, studentID string) (map[models.GradeLetter]int, error) {
	records, err := s.Grades(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return Distribution(records), nil
}

// Report bundles cumulative GPA, history, distribution and allowance from one load.
func (s *PerformanceService) Report(ctx context.Context, studentID string) (*models.PerformanceReport, error) {
	records, history, err := s.loadHistory(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &models.PerformanceReport{
		Cumulative:   SummarizeGPA(records),
		History:      history,
		Distribution: Distribution(records),
		Allowance:    s.AllowanceFromHistory(history),
	}, nil
}

// SummarizeGPA computes the cumulative GPA rounded to two decimals.
func SummarizeGPA(records []models.GradeRecord) models.GPASummary {
	var summary models.GPASummary
	var points float64
	for _, r := range records {
		if !r.Letter.Valid() {
			continue
		}
		summary.TotalCredits += r.Credits
		points += r.Letter.Points() * float64(r.Credits)
		if !r.Letter.Failing() {
			summary.EarnedCredits += r.Credits
		}
	}
	if summary.TotalCredits > 0 {
		summary.GPA = round2(points / float64(summary.TotalCredits))
	}
	return summary
}

// BuildTermHistory merges registered periods with graded periods and computes each term GPA.
func BuildTermHistory(periods []models.AcademicPeriod, records []models.GradeRecord) []models.TermGPA {
	terms := make(map[string]*models.TermGPA)
	points := make(map[string]float64)
	for _, p := range periods {
		terms[p.ID] = &models.TermGPA{PeriodID: p.ID, Label: p.Label(), Year: p.Year, Half: p.Half}
	}
	for _, r := range records {
		if !r.Letter.Valid() {
			continue
		}
		term, ok := terms[r.PeriodID]
		if !ok {
			period := models.AcademicPeriod{ID: r.PeriodID, Year: r.PeriodYear, Half: r.PeriodHalf}
			term = &models.TermGPA{PeriodID: r.PeriodID, Label: period.Label(), Year: r.PeriodYear, Half: r.PeriodHalf}
			terms[r.PeriodID] = term
		}
		term.Credits += r.Credits
		term.HasData = true
		points[r.PeriodID] += r.Letter.Points() * float64(r.Credits)
	}

	history := make([]models.TermGPA, 0, len(terms))
	for id, term := range terms {
		if term.Credits > 0 {
			term.GPA = round2(points[id] / float64(term.Credits))
		}
		history = append(history, *term)
	}
	sort.Slice(history, func(i, j int) bool {
		if history[i].Year != history[j].Year {
			return history[i].Year < history[j].Year
		}
		if history[i].Half != history[j].Half {
			return history[i].Half < history[j].Half
		}
		return history[i].PeriodID < history[j].PeriodID
	})
	return history
}

// LastTermGPA returns the most recent nonzero term GPA.
func LastTermGPA(history []models.TermGPA) (float64, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].HasData && history[i].GPA > 0 {
			return history[i].GPA, true
		}
	}
	return 0, false
}

// TermsWithData filters out terms that carry no grades.
func TermsWithData(history []models.TermGPA) []models.TermGPA {
	out := make([]models.TermGPA, 0, len(history))
	for _, term := range history {
		if term.HasData {
			out = append(out, term)
		}
	}
	return out
}

// Distribution counts letters over the grading scale; every scale letter is present.
func Distribution(records []models.GradeRecord) map[models.GradeLetter]int {
	counts := make(map[models.GradeLetter]int, len(models.GradeLetters))
	for _, letter := range models.GradeLetters {
		counts[letter] = 0
	}
	for _, r := range records {
		if r.Letter.Valid() {
			counts[r.Letter]++
		}
	}
	return counts
}

// Standing derives passed courses and the failed courses that were never passed afterwards.
func Standing(records []models.GradeRecord) CourseStanding {
	standing := CourseStanding{Passed: make(map[string]struct{})}
	for _, r := range records {
		if !r.Letter.Valid() || r.Letter.Failing() {
			continue
		}
		if _, seen := standing.Passed[r.CourseID]; !seen {
			standing.Passed[r.CourseID] = struct{}{}
			standing.PassedCodes = append(standing.PassedCodes, r.CourseCode)
		}
	}

	latestFail := make(map[string]int)
	for _, r := range records {
		if !r.Letter.Valid() || !r.Letter.Failing() {
			continue
		}
		standing.FailingRecords++
		if standing.HasPassed(r.CourseID) {
			continue
		}
		if idx, ok := latestFail[r.CourseID]; ok {
			standing.Failed[idx] = r
			continue
		}
		latestFail[r.CourseID] = len(standing.Failed)
		standing.Failed = append(standing.Failed, r)
	}
	return standing
}

// PassedAndFailed is Standing over the student's stored grades.
func (s *PerformanceService) PassedAndFailed(ctx context.Context, studentID string) (CourseStanding, error) {
	records, err := s.Grades(ctx, studentID)
	if err != nil {
		return CourseStanding{}, err
	}
	return Standing(records), nil
}

func gradedOnly(records []models.GradeRecord) []models.GradeRecord {
	out := make([]models.GradeRecord, 0, len(records))
	for _, r := range records {
		if r.Letter.Valid() {
			out = append(out, r)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
