package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

// Risk factor names.
const (
	FactorGPATrend           = "gpa_trend"
	FactorAttendance         = "attendance"
	FactorRetakes            = "retakes"
	FactorGraduationProgress = "graduation_progress"
	FactorWorkload           = "workload"
)

// riskBand maps a measurement below Upper (or at Upper when Inclusive) to Risk. Bands are checked in order.
type riskBand struct {
	Upper     float64
	Inclusive bool
	Risk      float64
}

func (b riskBand) matches(v float64) bool {
	if b.Inclusive {
		return v <= b.Upper
	}
	return v < b.Upper
}

type riskFactorRule struct {
	name    string
	weight  float64
	neutral float64
	measure func(RiskInputs) (float64, bool)
	bands   []riskBand
}

var unbounded = math.Inf(1)

var riskFactorTable = []riskFactorRule{
	{
		name: FactorGPATrend, weight: 0.25, neutral: 0.3, measure: measureTrend,
		bands: []riskBand{{-0.5, false, 0.9}, {-0.2, false, 0.7}, {0.2, false, 0.3}, {unbounded, true, 0.1}},
	},
	{
		name: FactorAttendance, weight: 0.20, neutral: 0.3, measure: measureAttendance,
		bands: []riskBand{{60, false, 0.9}, {70, false, 0.7}, {80, false, 0.5}, {90, false, 0.3}, {unbounded, true, 0.1}},
	},
	{
		name: FactorRetakes, weight: 0.15, measure: measureRetakes,
		bands: []riskBand{{0, true, 0}, {2, true, 0.3}, {4, true, 0.6}, {unbounded, true, 0.9}},
	},
	{
		name: FactorGraduationProgress, weight: 0.25, neutral: 0.1, measure: measureGraduationDeficit,
		bands: []riskBand{{0, true, 0.1}, {0.1, true, 0.3}, {0.2, true, 0.5}, {0.3, true, 0.7}, {unbounded, true, 0.9}},
	},
	{
		name: FactorWorkload, weight: 0.15, neutral: 0.3, measure: measureWorkload,
		bands: []riskBand{{0.5, false, 0.6}, {0.7, false, 0.4}, {1.0, true, 0.2}, {unbounded, true, 0.8}},
	},
}

type riskLevelBand struct {
	maxScore int
	level    models.RiskLevel
}

var riskLevelBands = []riskLevelBand{
	{25, models.RiskLow},
	{45, models.RiskMedium},
	{65, models.RiskHigh},
	{math.MaxInt, models.RiskCritical},
}

type riskFlagRule struct {
	factor  string
	atLeast float64
	flag    models.RiskFlag
}

var riskFlagRules = []riskFlagRule{
	{FactorGPATrend, 0.7, models.FlagDecliningPerformance},
	{FactorAttendance, 0.7, models.FlagAttendanceWarning},
	{FactorRetakes, 0.6, models.FlagMultipleRetakes},
	{FactorGraduationProgress, 0.7, models.FlagGraduationDelayRisk},
	{FactorWorkload, 0.6, models.FlagWorkloadImbalance},
}

var riskRecommendations = map[models.RiskFlag]string{
	models.FlagDecliningPerformance: "Consult your academic advisor to review your study load",
	models.FlagAttendanceWarning:    "Improve class attendance to avoid academic sanctions",
	models.FlagMultipleRetakes:      "Focus on retaking failed courses before taking new ones",
	models.FlagGraduationDelayRisk:  "Consider a short semester or additional credits to catch up",
	models.FlagWorkloadImbalance:    "Match your credit load to your last term GPA",
}

const riskFallbackRecommendation = "Maintain your good academic performance"

// RiskInputs are the measurements a risk profile is scored from.
type RiskInputs struct {
	// TermGPAs holds the GPAs of terms with grades, oldest first.
	TermGPAs              []float64
	AttendancePercentages []float64
	FailingRecords        int
	EarnedCredits         int
	TargetCredits         int
	CurrentSemester       int
	// ApprovedCredits is nil when the student has no approved registration in the active period.
	ApprovedCredits *int
	MaxCredits      int
}

// ScoreRisk computes the composite risk profile from inputs.
func ScoreRisk(studentID string, in RiskInputs) models.RiskProfile {
	profile := models.RiskProfile{StudentID: studentID}
	values := make(map[string]float64, len(riskFactorTable))

	var score float64
	for _, rule := range riskFactorTable {
		value := rule.neutral
		if measured, ok := rule.measure(in); ok {
			value = bandRisk(rule.bands, measured)
		}
		values[rule.name] = value
		score += value * rule.weight * 100
		profile.Factors = append(profile.Factors, models.RiskFactor{Name: rule.name, Value: value, Weight: rule.weight})
	}
	profile.Score = int(math.Round(score))
	profile.Level = riskLevel(profile.Score)
	profile.LevelLabel = profile.Level.Label()

	for _, rule := range riskFlagRules {
		if values[rule.factor] >= rule.atLeast {
			profile.Flags = append(profile.Flags, rule.flag)
			profile.Recommendations = append(profile.Recommendations, riskRecommendations[rule.flag])
		}
	}
	if len(profile.Recommendations) == 0 {
		profile.Recommendations = []string{riskFallbackRecommendation}
	}
	return profile
}

func bandRisk(bands []riskBand, v float64) float64 {
	for _, b := range bands {
		if b.matches(v) {
			return b.Risk
		}
	}
	return bands[len(bands)-1].Risk
}

func riskLevel(score int) models.RiskLevel {
	for _, b := range riskLevelBands {
		if score <= b.maxScore {
			return b.level
		}
	}
	return models.RiskCritical
}

// measureTrend is the change between the last two term GPAs, rounded so band edges compare exactly.
func measureTrend(in RiskInputs) (float64, bool) {
	n := len(in.TermGPAs)
	if n < 2 {
		return 0, false
	}
	return round2(in.TermGPAs[n-1] - in.TermGPAs[n-2]), true
}

func measureAttendance(in RiskInputs) (float64, bool) {
	if len(in.AttendancePercentages) == 0 {
		return 0, false
	}
	var total float64
	for _, p := range in.AttendancePercentages {
		total += p
	}
	return total / float64(len(in.AttendancePercentages)), true
}

func measureRetakes(in RiskInputs) (float64, bool) {
	return float64(in.FailingRecords), true
}

// measureGraduationDeficit returns the credit deficit against the expected pace as a share of the target.
// Zero or less means on track.
func measureGraduationDeficit(in RiskInputs) (float64, bool) {
	target := in.TargetCredits
	if target <= 0 {
		target = models.DefaultGraduationCredits
	}
	semester := in.CurrentSemester
	if semester < 1 {
		semester = 1
	}
	expected := math.Min(float64(semester)/8*float64(target), float64(target))
	return (expected - float64(in.EarnedCredits)) / float64(target), true
}

func measureWorkload(in RiskInputs) (float64, bool) {
	if in.ApprovedCredits == nil {
		return 0, false
	}
	ceiling := in.MaxCredits
	if ceiling < 1 {
		ceiling = 1
	}
	return float64(*in.ApprovedCredits) / float64(ceiling), true
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type registrationReader interface {
	FindByStudentPeriod(ctx context.Context, studentID, periodID string) (*models.Registration, error)
	ListLines(ctx context.Context, registrationID string) ([]models.RegistrationLineDetail, error)
}

type attendanceReader interface {
	SummariesBySections(ctx context.Context, studentID string, sectionIDs []string) ([]models.AttendanceSummary, error)
}

// RiskService gathers a student's academic signals and scores them.
type RiskService struct {
	students      studentReader
	registrations registrationReader
	attendance    attendanceReader
	performance   *PerformanceService
	curriculum    *CurriculumService
	calendar      *CalendarService
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewRiskService constructs RiskService.
func NewRiskService(
	students studentReader,
	registrations registrationReader,
	attendance attendanceReader,
	performance *PerformanceService,
	curriculum *CurriculumService,
	calendar *CalendarService,
	metrics *MetricsService,
	logger *zap.Logger,
) *RiskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskService{
		students:      students,
		registrations: registrations,
		attendance:    attendance,
		performance:   performance,
		curriculum:    curriculum,
		calendar:      calendar,
		metrics:       metrics,
		logger:        logger,
	}
}

// Calculate scores one student against the current calendar.
func (s *RiskService) Calculate(ctx context.Context, studentID string) (*models.RiskProfile, error) {
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
	return s.CalculateFor(ctx, student, snap)
}

// CalculateFor scores an already loaded student against a shared calendar snapshot.
func (s *RiskService) CalculateFor(ctx context.Context, student *models.Student, snap *CalendarSnapshot) (*models.RiskProfile, error) {
	inputs, err := s.gatherInputs(ctx, student, snap)
	if err != nil {
		return nil, err
	}
	profile := ScoreRisk(student.ID, inputs)
	s.metrics.ObserveRiskProfile(profile)
	s.logger.Debug("risk profile computed",
		zap.String("student_id", student.ID),
		zap.Int("score", profile.Score),
		zap.String("level", string(profile.Level)))
	return &profile, nil
}

func (s *RiskService) gatherInputs(ctx context.Context, student *models.Student, snap *CalendarSnapshot) (RiskInputs, error) {
	records, history, err := s.performance.loadHistory(ctx, student.ID)
	if err != nil {
		return RiskInputs{}, err
	}
	version, err := s.curriculum.ResolveForStudent(ctx, student)
	if err != nil {
		return RiskInputs{}, err
	}

	inputs := RiskInputs{
		FailingRecords:  Standing(records).FailingRecords,
		EarnedCredits:   SummarizeGPA(records).EarnedCredits,
		TargetCredits:   version.TotalRequiredCredits(),
		CurrentSemester: StudentSemesterAt(student.EnrollmentYear, snap.Now()),
		MaxCredits:      s.performance.AllowanceFromHistory(history).MaxCredits,
	}
	for _, term := range TermsWithData(history) {
		inputs.TermGPAs = append(inputs.TermGPAs, term.GPA)
	}

	lines, approved, err := s.approvedLines(ctx, student.ID, snap)
	if err != nil {
		return RiskInputs{}, err
	}
	if !approved {
		return inputs, nil
	}
	credits := models.TotalCredits(lines)
	inputs.ApprovedCredits = &credits

	sectionIDs := make([]string, len(lines))
	for i, line := range lines {
		sectionIDs[i] = line.SectionID
	}
	summaries, err := s.attendance.SummariesBySections(ctx, student.ID, sectionIDs)
	if err != nil {
		return RiskInputs{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	for _, summary := range summaries {
		if summary.MeetingsHeld > 0 {
			inputs.AttendancePercentages = append(inputs.AttendancePercentages, summary.Percentage)
		}
	}
	return inputs, nil
}

// approvedLines returns the lines of the student's approved registration in the active period.
func (s *RiskService) approvedLines(ctx context.Context, studentID string, snap *CalendarSnapshot) ([]models.RegistrationLineDetail, bool, error) {
	period := snap.ActivePeriod()
	if period == nil {
		return nil, false, nil
	}
	reg, err := s.registrations.FindByStudentPeriod(ctx, studentID, period.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if reg.Status != models.RegistrationApproved {
		return nil, false, nil
	}
	lines, err := s.registrations.ListLines(ctx, reg.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration lines")
	}
	return lines, true, nil
}
