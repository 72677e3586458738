package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

type studentReaderMock struct {
	students map[string]models.Student
}

func (m *studentReaderMock) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

type registrationReaderMock struct {
	byStudent map[string]models.Registration
	lines     map[string][]models.RegistrationLineDetail
}

func (m *registrationReaderMock) FindByStudentPeriod(_ context.Context, studentID, periodID string) (*models.Registration, error) {
	reg, ok := m.byStudent[studentID]
	if !ok || reg.PeriodID != periodID {
		return nil, sql.ErrNoRows
	}
	return &reg, nil
}

func (m *registrationReaderMock) ListLines(_ context.Context, registrationID string) ([]models.RegistrationLineDetail, error) {
	return m.lines[registrationID], nil
}

type attendanceReaderMock struct {
	summaries []models.AttendanceSummary
	requested []string
}

func (m *attendanceReaderMock) SummariesBySections(_ context.Context, _ string, sectionIDs []string) ([]models.AttendanceSummary, error) {
	m.requested = sectionIDs
	return m.summaries, nil
}

func intPtr(v int) *int { return &v }

func TestScoreRiskDecliningTrend(t *testing.T) {
	profile := ScoreRisk("stu-1", RiskInputs{
		TermGPAs:        []float64{3.0, 2.3},
		EarnedCredits:   40,
		TargetCredits:   144,
		CurrentSemester: 2,
		MaxCredits:      24,
	})

	trend, ok := profile.Factor(FactorGPATrend)
	require.True(t, ok)
	assert.Equal(t, 0.9, trend)
	attendance, _ := profile.Factor(FactorAttendance)
	assert.Equal(t, 0.3, attendance)
	progress, _ := profile.Factor(FactorGraduationProgress)
	assert.Equal(t, 0.1, progress)
	workload, _ := profile.Factor(FactorWorkload)
	assert.Equal(t, 0.3, workload)

	assert.InDelta(t, 36, profile.Score, 1)
	assert.Equal(t, models.RiskMedium, profile.Level)
	assert.Equal(t, "Medium risk", profile.LevelLabel)
	assert.Equal(t, []models.RiskFlag{models.FlagDecliningPerformance}, profile.Flags)
	assert.Equal(t, []string{riskRecommendations[models.FlagDecliningPerformance]}, profile.Recommendations)
}

func TestScoreRiskNeutralDefaults(t *testing.T) {
	profile := ScoreRisk("stu-new", RiskInputs{TargetCredits: 144, CurrentSemester: 1, EarnedCredits: 18})

	assert.Len(t, profile.Factors, 5)
	retakes, _ := profile.Factor(FactorRetakes)
	assert.Equal(t, 0.0, retakes)
	progress, _ := profile.Factor(FactorGraduationProgress)
	assert.Equal(t, 0.1, progress)

	behind := ScoreRisk("stu-new", RiskInputs{TargetCredits: 144, CurrentSemester: 1})
	progress, _ = behind.Factor(FactorGraduationProgress)
	assert.Equal(t, 0.5, progress)
	assert.Equal(t, models.RiskLow, profile.Level)
	assert.Empty(t, profile.Flags)
	assert.Equal(t, []string{riskFallbackRecommendation}, profile.Recommendations)
}

func TestScoreRiskCritical(t *testing.T) {
	profile := ScoreRisk("stu-2", RiskInputs{
		TermGPAs:              []float64{3.2, 2.5, 1.6},
		AttendancePercentages: []float64{50, 55},
		FailingRecords:        3,
		EarnedCredits:         20,
		TargetCredits:         144,
		CurrentSemester:       6,
		ApprovedCredits:       intPtr(20),
		MaxCredits:            15,
	})

	assert.Equal(t, 84, profile.Score)
	assert.Equal(t, models.RiskCritical, profile.Level)
	assert.True(t, profile.IsCritical())
	assert.True(t, profile.IsHighRisk())
	for _, flag := range []models.RiskFlag{
		models.FlagDecliningPerformance, models.FlagAttendanceWarning, models.FlagMultipleRetakes,
		models.FlagGraduationDelayRisk, models.FlagWorkloadImbalance,
	} {
		assert.True(t, profile.HasFlag(flag), "flag %s", flag)
	}
	assert.Len(t, profile.Recommendations, 5)
}

func TestRiskBands(t *testing.T) {
	byName := map[string]riskFactorRule{}
	for _, rule := range riskFactorTable {
		byName[rule.name] = rule
	}

	attendance := byName[FactorAttendance].bands
	assert.Equal(t, 0.1, bandRisk(attendance, 90))
	assert.Equal(t, 0.3, bandRisk(attendance, 89.9))
	assert.Equal(t, 0.7, bandRisk(attendance, 60))
	assert.Equal(t, 0.9, bandRisk(attendance, 59.9))

	retakes := byName[FactorRetakes].bands
	assert.Equal(t, 0.3, bandRisk(retakes, 2))
	assert.Equal(t, 0.6, bandRisk(retakes, 3))
	assert.Equal(t, 0.9, bandRisk(retakes, 5))

	workload := byName[FactorWorkload].bands
	assert.Equal(t, 0.6, bandRisk(workload, 0.49))
	assert.Equal(t, 0.4, bandRisk(workload, 0.5))
	assert.Equal(t, 0.2, bandRisk(workload, 1.0))
	assert.Equal(t, 0.8, bandRisk(workload, 1.01))

	trend := byName[FactorGPATrend].bands
	assert.Equal(t, 0.7, bandRisk(trend, -0.5))
	assert.Equal(t, 0.3, bandRisk(trend, -0.2))
	assert.Equal(t, 0.1, bandRisk(trend, 0.2))

	assert.Equal(t, models.RiskLow, riskLevel(25))
	assert.Equal(t, models.RiskMedium, riskLevel(26))
	assert.Equal(t, models.RiskHigh, riskLevel(65))
	assert.Equal(t, models.RiskCritical, riskLevel(66))
}

func newRiskFixture(t *testing.T) (*RiskService, *attendanceReaderMock) {
	t.Helper()
	period := &models.AcademicPeriod{ID: "per-2", Year: 2024, Half: models.PeriodHalfEven, IsActive: true}
	clock := func() time.Time { return at(2025, time.March, 1, 9) }

	students := &studentReaderMock{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", ProgramName: "Teknik Informatika", EnrollmentYear: 2024, Status: models.StudentStatusActive},
	}}
	grades := &gradeReaderMock{records: map[string][]models.GradeRecord{
		"stu-1": {
			grade("c1", 3, models.GradeA, "per-1", 2024, models.PeriodHalfOdd),
			grade("c2", 3, models.GradeE, "per-1", 2024, models.PeriodHalfOdd),
		},
	}}
	periods := &studentPeriodReaderMock{periods: map[string][]models.AcademicPeriod{"stu-1": {*period}}}
	lines := []models.RegistrationLineDetail{
		lineFor(sectionDetail("s1", "c3", "Struktur Data", 3)),
		lineFor(sectionDetail("s2", "c4", "Aljabar", 3)),
	}
	registrations := &registrationReaderMock{
		byStudent: map[string]models.Registration{"stu-1": {ID: "reg-1", StudentID: "stu-1", PeriodID: "per-2", Status: models.RegistrationApproved}},
		lines:     map[string][]models.RegistrationLineDetail{"reg-1": lines},
	}
	attendance := &attendanceReaderMock{summaries: []models.AttendanceSummary{
		{SectionID: "s1", MeetingsHeld: 10, Percentage: 70},
		{SectionID: "s2", MeetingsHeld: 0, Percentage: 0},
	}}

	calendar := NewCalendarService(&periodReaderMock{period: period}, newCalendarCache(), 0, nil).WithClock(clock)
	curriculum := NewCurriculumService(newCatalogStub(), newCurriculumCache(), grades, nil)
	performance := NewPerformanceService(grades, periods, defaultCeiling(t), nil)
	return NewRiskService(students, registrations, attendance, performance, curriculum, calendar, NewMetricsService(), nil), attendance
}

func TestRiskServiceCalculate(t *testing.T) {
	svc, attendance := newRiskFixture(t)

	profile, err := svc.Calculate(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, attendance.requested)

	trend, _ := profile.Factor(FactorGPATrend)
	assert.Equal(t, 0.3, trend)
	attendanceRisk, _ := profile.Factor(FactorAttendance)
	assert.Equal(t, 0.5, attendanceRisk)
	retakes, _ := profile.Factor(FactorRetakes)
	assert.Equal(t, 0.3, retakes)
	// 6 approved credits against the 18 credit ceiling of a 2.0 term.
	workload, _ := profile.Factor(FactorWorkload)
	assert.Equal(t, 0.6, workload)
	assert.True(t, profile.HasFlag(models.FlagWorkloadImbalance))
}

func TestRiskServiceUnknownStudent(t *testing.T) {
	svc, _ := newRiskFixture(t)

	_, err := svc.Calculate(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
