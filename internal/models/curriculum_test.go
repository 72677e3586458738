package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func sampleCurriculum() *CurriculumVersion {
	return &CurriculumVersion{
		Program: "informatika",
		Year:    2023,
		Semesters: map[int][]CurriculumCourse{
			2: {
				{Code: "IF201", Name: "Data Structures", Credits: 3},
				{Code: "IF202", Name: "Web Programming", Credits: 2, Required: boolPtr(false)},
			},
			1: {
				{Code: "IF101", Name: "Introduction to Programming", Credits: 3},
				{Code: "IF102", Name: "Discrete Mathematics", Credits: 2, Required: boolPtr(true)},
			},
		},
	}
}

func TestCalculateProgressCountsCourses(t *testing.T) {
	v := &CurriculumVersion{Semesters: map[int][]CurriculumCourse{
		1: {{Code: "A", Credits: 3}, {Code: "B", Credits: 3}, {Code: "C", Credits: 2}, {Code: "D", Credits: 2}},
	}}

	p := v.CalculateProgress([]string{"A", "B"})
	assert.Equal(t, 50.0, p.Percentage)
	assert.Equal(t, 4, p.TotalCourses)
	assert.Equal(t, 2, p.CompletedCourses)
	assert.Equal(t, 2, p.RemainingCourses)
	assert.Equal(t, 10, p.TotalCredits)
	assert.Equal(t, 6, p.CompletedCredits)
	assert.Equal(t, 4, p.RemainingCredits)

	p = v.CalculateProgress([]string{"C", "D", "X"})
	assert.Equal(t, 50.0, p.Percentage)
	assert.Equal(t, 4, p.CompletedCredits)
}

func TestCalculateProgressRoundsToOneDecimal(t *testing.T) {
	v := &CurriculumVersion{Semesters: map[int][]CurriculumCourse{
		1: {{Code: "A", Credits: 3}, {Code: "B", Credits: 3}, {Code: "C", Credits: 2}},
	}}

	p := v.CalculateProgress([]string{"A"})
	assert.Equal(t, 33.3, p.Percentage)
	assert.Equal(t, 2, p.RemainingCourses)
}

func TestCalculateProgressEmptyCurriculum(t *testing.T) {
	p := (&CurriculumVersion{}).CalculateProgress([]string{"A"})
	assert.Equal(t, 0.0, p.Percentage)
	assert.Equal(t, 0, p.TotalCourses)
}

func TestFindCourseScansInSemesterOrder(t *testing.T) {
	v := sampleCurriculum()

	course, ok := v.FindCourseByName("PROGRAMMING")
	require.True(t, ok)
	assert.Equal(t, "IF101", course.Code)
	assert.Equal(t, 1, course.Semester)

	course, ok = v.FindCourseByCode("IF202")
	require.True(t, ok)
	assert.Equal(t, 2, course.Semester)

	_, ok = v.FindCourseByCode("if202")
	assert.False(t, ok)
}

func TestRequiredDefaultsToTrue(t *testing.T) {
	v := sampleCurriculum()

	required := v.RequiredCourses()
	electives := v.ElectiveCourses()

	assert.Len(t, required, 3)
	require.Len(t, electives, 1)
	assert.Equal(t, "IF202", electives[0].Code)
}

func TestAllSemestersOrdered(t *testing.T) {
	semesters := sampleCurriculum().AllSemesters()

	require.Len(t, semesters, 2)
	assert.Equal(t, 1, semesters[0].Semester)
	assert.Equal(t, 5, semesters[0].TotalCredits)
	assert.Equal(t, 2, semesters[1].Semester)
}

func TestGraduationRulesDefaults(t *testing.T) {
	v := sampleCurriculum()
	assert.Equal(t, 144, v.TotalRequiredCredits())
	assert.Equal(t, 120, v.MinCreditsForThesis())
	assert.Equal(t, 90, v.MinCreditsForInternship())

	v.Rules = GraduationRules{TotalCredits: 146}
	assert.Equal(t, 146, v.TotalRequiredCredits())
}
