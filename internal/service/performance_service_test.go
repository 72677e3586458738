package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

type gradeReaderMock struct {
	records map[string][]models.GradeRecord
	err     error
}

func (m *gradeReaderMock) ListByStudent(_ context.Context, studentID string) ([]models.GradeRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records[studentID], nil
}

type studentPeriodReaderMock struct {
	periods map[string][]models.AcademicPeriod
	err     error
}

func (m *studentPeriodReaderMock) ListByStudent(_ context.Context, studentID string) ([]models.AcademicPeriod, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.periods[studentID], nil
}

func grade(courseID string, credits int, letter models.GradeLetter, periodID string, year int, half models.PeriodHalf) models.GradeRecord {
	return models.GradeRecord{
		ID:         courseID + "-" + periodID,
		CourseID:   courseID,
		CourseCode: "C" + courseID,
		CourseName: "Course " + courseID,
		Credits:    credits,
		PeriodID:   periodID,
		PeriodYear: year,
		PeriodHalf: half,
		Letter:     letter,
	}
}

func defaultCeiling(t *testing.T) CreditCeiling {
	t.Helper()
	ceiling, err := NewCreditCeiling(models.DefaultCreditCeilingRules())
	require.NoError(t, err)
	return ceiling
}

func TestCreditCeilingBreakpoints(t *testing.T) {
	ceiling := defaultCeiling(t)

	cases := map[float64]int{
		4.0: 24, 3.5: 24, 3.0: 24, 2.99: 21, 2.5: 21, 2.49: 18,
		2.0: 18, 1.99: 15, 1.5: 15, 1.49: 12, 0: 12, -1: 12, 5: 24,
	}
	for gpa, want := range cases {
		assert.Equal(t, want, ceiling.Max(gpa), "gpa %.2f", gpa)
	}
}

func TestCreditCeilingIsMonotonic(t *testing.T) {
	ceiling := defaultCeiling(t)

	previous := 0
	for step := 0; step <= 400; step++ {
		current := ceiling.Max(float64(step) / 100)
		assert.GreaterOrEqual(t, current, previous)
		assert.GreaterOrEqual(t, current, 12)
		assert.LessOrEqual(t, current, 24)
		previous = current
	}
}

func TestNewCreditCeilingRejectsInvalidTables(t *testing.T) {
	_, err := NewCreditCeiling(models.CreditCeilingRules{
		DefaultGPA:   3,
		FloorCredits: 12,
		Breakpoints:  []models.CreditBreakpoint{{MinGPA: 3, MaxCredits: 18}, {MinGPA: 2, MaxCredits: 21}},
	})
	assert.Error(t, err)

	_, err = NewCreditCeiling(models.CreditCeilingRules{
		DefaultGPA:   3,
		FloorCredits: 20,
		Breakpoints:  []models.CreditBreakpoint{{MinGPA: 2, MaxCredits: 18}},
	})
	assert.Error(t, err)

	_, err = NewCreditCeiling(models.CreditCeilingRules{DefaultGPA: 3})
	assert.Error(t, err)

	unordered, err := NewCreditCeiling(models.CreditCeilingRules{
		DefaultGPA:   3,
		FloorCredits: 12,
		Breakpoints:  []models.CreditBreakpoint{{MinGPA: 2, MaxCredits: 18}, {MinGPA: 3, MaxCredits: 24}},
	})
	require.NoError(t, err)
	assert.Equal(t, 24, unordered.Max(3.2))
}

func TestSummarizeGPA(t *testing.T) {
	records := []models.GradeRecord{
		grade("1", 3, models.GradeA, "p1", 2023, models.PeriodHalfOdd),
		grade("2", 2, models.GradeB, "p1", 2023, models.PeriodHalfOdd),
		grade("3", 3, models.GradeE, "p1", 2023, models.PeriodHalfOdd),
	}

	summary := SummarizeGPA(records)
	assert.Equal(t, 8, summary.TotalCredits)
	assert.Equal(t, 5, summary.EarnedCredits)
	assert.Equal(t, 2.25, summary.GPA)

	assert.Equal(t, models.GPASummary{}, SummarizeGPA(nil))
}

func TestBuildTermHistoryMergesRegisteredPeriods(t *testing.T) {
	periods := []models.AcademicPeriod{
		{ID: "p3", Year: 2024, Half: models.PeriodHalfOdd},
		{ID: "p1", Year: 2023, Half: models.PeriodHalfOdd},
	}
	records := []models.GradeRecord{
		grade("1", 3, models.GradeA, "p1", 2023, models.PeriodHalfOdd),
		grade("2", 3, models.GradeCPlus, "p2", 2023, models.PeriodHalfEven),
	}

	history := BuildTermHistory(periods, records)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"p1", "p2", "p3"}, []string{history[0].PeriodID, history[1].PeriodID, history[2].PeriodID})
	assert.Equal(t, 4.0, history[0].GPA)
	assert.Equal(t, 2.3, history[1].GPA)
	assert.Equal(t, "2023/2024 Even", history[1].Label)
	assert.False(t, history[2].HasData)
	assert.Equal(t, 0.0, history[2].GPA)

	gpa, ok := LastTermGPA(history)
	assert.True(t, ok)
	assert.Equal(t, 2.3, gpa)
	assert.Len(t, TermsWithData(history), 2)
}

func TestPerformanceServiceCeilingFor(t *testing.T) {
	grades := &gradeReaderMock{records: map[string][]models.GradeRecord{
		"stu-1": {
			grade("1", 3, models.GradeB, "p1", 2023, models.PeriodHalfOdd),
			grade("2", 3, models.GradeA, "p2", 2023, models.PeriodHalfEven),
			grade("3", 3, models.GradeBPlus, "p2", 2023, models.PeriodHalfEven),
		},
	}}
	svc := NewPerformanceService(grades, &studentPeriodReaderMock{}, defaultCeiling(t), nil)

	allowance, err := svc.CeilingFor(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 3.65, allowance.LastGPA)
	assert.False(t, allowance.Defaulted)
	assert.Equal(t, 24, allowance.MaxCredits)

	fresh, err := svc.CeilingFor(context.Background(), "stu-new")
	require.NoError(t, err)
	assert.True(t, fresh.Defaulted)
	assert.Equal(t, 3.0, fresh.LastGPA)
	assert.Equal(t, 24, fresh.MaxCredits)
}

func TestPerformanceServiceReport(t *testing.T) {
	grades := &gradeReaderMock{records: map[string][]models.GradeRecord{
		"stu-1": {
			grade("1", 3, models.GradeC, "p1", 2023, models.PeriodHalfOdd),
			grade("2", 3, models.GradeD, "p1", 2023, models.PeriodHalfOdd),
			grade("3", 3, "T", "p1", 2023, models.PeriodHalfOdd),
		},
	}}
	svc := NewPerformanceService(grades, &studentPeriodReaderMock{}, defaultCeiling(t), nil)

	report, err := svc.Report(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, report.Cumulative.GPA)
	assert.Equal(t, 6, report.Cumulative.TotalCredits)
	assert.Equal(t, 1, report.Distribution[models.GradeC])
	assert.Equal(t, 1, report.Distribution[models.GradeD])
	assert.Equal(t, 0, report.Distribution[models.GradeA])
	assert.Len(t, report.Distribution, len(models.GradeLetters))
	assert.Equal(t, 15, report.Allowance.MaxCredits)
}

func TestPerformanceServiceWrapsErrors(t *testing.T) {
	svc := NewPerformanceService(&gradeReaderMock{err: errors.New("boom")}, &studentPeriodReaderMock{}, defaultCeiling(t), nil)

	_, err := svc.CumulativeGPA(context.Background(), "stu-1")
	assert.ErrorIs(t, err, appErrors.ErrInternal)

	svc = NewPerformanceService(&gradeReaderMock{}, &studentPeriodReaderMock{err: errors.New("boom")}, defaultCeiling(t), nil)
	_, err = svc.TermGPAHistory(context.Background(), "stu-1")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestStandingExcludesCoursesPassedLater(t *testing.T) {
	records := []models.GradeRecord{
		grade("1", 3, models.GradeE, "p1", 2023, models.PeriodHalfOdd),
		grade("1", 3, models.GradeB, "p2", 2023, models.PeriodHalfEven),
		grade("2", 3, models.GradeD, "p1", 2023, models.PeriodHalfOdd),
		grade("2", 3, models.GradeE, "p2", 2023, models.PeriodHalfEven),
		grade("3", 2, models.GradeA, "p1", 2023, models.PeriodHalfOdd),
	}

	standing := Standing(records)
	assert.True(t, standing.HasPassed("1"))
	assert.True(t, standing.HasPassed("3"))
	assert.False(t, standing.HasPassed("2"))
	assert.ElementsMatch(t, []string{"C1", "C3"}, standing.PassedCodes)
	require.Len(t, standing.Failed, 1)
	assert.Equal(t, "2", standing.Failed[0].CourseID)
	assert.Equal(t, "p2", standing.Failed[0].PeriodID)
	assert.Equal(t, 3, standing.FailingRecords)
}
