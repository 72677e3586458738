package models

import (
	"math"
	"sort"
	"strings"
)

// Default graduation rule values used when a program does not override them.
const (
	DefaultGraduationCredits = 144
	DefaultThesisMinCredits  = 120
	DefaultInternshipCredits = 90
)

// CurriculumCourse is one entry of a curriculum catalogue.
type CurriculumCourse struct {
	Code         string `mapstructure:"code" json:"code"`
	Name         string `mapstructure:"name" json:"name"`
	Credits      int    `mapstructure:"credits" json:"credits"`
	Required     *bool  `mapstructure:"required" json:"required,omitempty"`
	Prerequisite string `mapstructure:"prerequisite" json:"prerequisite,omitempty"`
	Semester     int    `mapstructure:"-" json:"semester,omitempty"`
}

// IsRequired treats an unspecified flag as required.
func (c CurriculumCourse) IsRequired() bool {
	return c.Required == nil || *c.Required
}

// GraduationRules holds the credit thresholds of a program.
type GraduationRules struct {
	TotalCredits         int `mapstructure:"graduation_total_credits" json:"graduation_total_credits"`
	ThesisMinCredits     int `mapstructure:"thesis_min_credits" json:"thesis_min_credits"`
	InternshipMinCredits int `mapstructure:"internship_min_credits" json:"internship_min_credits"`
}

// WithDefaults fills unset thresholds.
func (r GraduationRules) WithDefaults() GraduationRules {
	if r.TotalCredits <= 0 {
		r.TotalCredits = DefaultGraduationCredits
	}
	if r.ThesisMinCredits <= 0 {
		r.ThesisMinCredits = DefaultThesisMinCredits
	}
	if r.InternshipMinCredits <= 0 {
		r.InternshipMinCredits = DefaultInternshipCredits
	}
	return r
}

// CurriculumVersion is the resolved catalogue of a program for one version year.
type CurriculumVersion struct {
	Program   string                     `json:"program"`
	Year      int                        `json:"year"`
	Semesters map[int][]CurriculumCourse `json:"semesters"`
	Rules     GraduationRules            `json:"rules"`
}

// SemesterCourses groups a semester with its credit total.
type SemesterCourses struct {
	Semester     int                `json:"semester"`
	Courses      []CurriculumCourse `json:"courses"`
	TotalCredits int                `json:"total_credits"`
}

// CurriculumProgress compares completed course codes against a curriculum.
type CurriculumProgress struct {
	TotalCourses     int     `json:"total_courses"`
	CompletedCourses int     `json:"completed_courses"`
	RemainingCourses int     `json:"remaining_courses"`
	TotalCredits     int     `json:"total_credits"`
	CompletedCredits int     `json:"completed_credits"`
	RemainingCredits int     `json:"remaining_credits"`
	Percentage       float64 `json:"percentage"`
}

// SemesterNumbers returns the catalogue's semesters in ascending order.
func (v *CurriculumVersion) SemesterNumbers() []int {
	numbers := make([]int, 0, len(v.Semesters))
	for n := range v.Semesters {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// CoursesForSemester returns the courses of one semester annotated with the semester number.
func (v *CurriculumVersion) CoursesForSemester(semester int) []CurriculumCourse {
	courses := v.Semesters[semester]
	out := make([]CurriculumCourse, len(courses))
	for i, c := range courses {
		c.Semester = semester
		out[i] = c
	}
	return out
}

// AllSemesters lists every semester with its courses and credit total.
func (v *CurriculumVersion) AllSemesters() []SemesterCourses {
	numbers := v.SemesterNumbers()
	out := make([]SemesterCourses, 0, len(numbers))
	for _, n := range numbers {
		courses := v.CoursesForSemester(n)
		total := 0
		for _, c := range courses {
			total += c.Credits
		}
		out = append(out, SemesterCourses{Semester: n, Courses: courses, TotalCredits: total})
	}
	return out
}

// Courses flattens the catalogue in ascending semester order.
func (v *CurriculumVersion) Courses() []CurriculumCourse {
	var out []CurriculumCourse
	for _, n := range v.SemesterNumbers() {
		out = append(out, v.CoursesForSemester(n)...)
	}
	return out
}

// RequiredCourses returns the mandatory courses.
func (v *CurriculumVersion) RequiredCourses() []CurriculumCourse {
	return v.filter(func(c CurriculumCourse) bool { return c.IsRequired() })
}

// ElectiveCourses returns courses explicitly marked as not required.
func (v *CurriculumVersion) ElectiveCourses() []CurriculumCourse {
	return v.filter(func(c CurriculumCourse) bool { return !c.IsRequired() })
}

func (v *CurriculumVersion) filter(keep func(CurriculumCourse) bool) []CurriculumCourse {
	var out []CurriculumCourse
	for _, c := range v.Courses() {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// FindCourseByCode returns the first course whose code matches exactly.
func (v *CurriculumVersion) FindCourseByCode(code string) (CurriculumCourse, bool) {
	for _, c := range v.Courses() {
		if c.Code == code {
			return c, true
		}
	}
	return CurriculumCourse{}, false
}

// FindCourseByName returns the first course whose name contains name, ignoring case.
func (v *CurriculumVersion) FindCourseByName(name string) (CurriculumCourse, bool) {
	needle := strings.ToLower(name)
	for _, c := range v.Courses() {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			return c, true
		}
	}
	return CurriculumCourse{}, false
}

// TotalCredits sums every course credit in the catalogue.
func (v *CurriculumVersion) TotalCredits() int {
	total := 0
	for _, c := range v.Courses() {
		total += c.Credits
	}
	return total
}

// TotalRequiredCredits is the graduation credit threshold.
func (v *CurriculumVersion) TotalRequiredCredits() int {
	return v.Rules.WithDefaults().TotalCredits
}

// MinCreditsForThesis is the credit threshold to start a thesis.
func (v *CurriculumVersion) MinCreditsForThesis() int {
	return v.Rules.WithDefaults().ThesisMinCredits
}

// MinCreditsForInternship is the credit threshold to start an internship.
func (v *CurriculumVersion) MinCreditsForInternship() int {
	return v.Rules.WithDefaults().InternshipMinCredits
}

// CalculateProgress reports how much of the catalogue the completed codes cover.
// The percentage counts courses, not credits.
func (v *CurriculumVersion) CalculateProgress(completedCodes []string) CurriculumProgress {
	done := make(map[string]struct{}, len(completedCodes))
	for _, code := range completedCodes {
		done[code] = struct{}{}
	}

	var p CurriculumProgress
	for _, c := range v.Courses() {
		p.TotalCourses++
		p.TotalCredits += c.Credits
		if _, ok := done[c.Code]; ok {
			p.CompletedCourses++
			p.CompletedCredits += c.Credits
		}
	}
	p.RemainingCourses = p.TotalCourses - p.CompletedCourses
	p.RemainingCredits = p.TotalCredits - p.CompletedCredits
	if p.TotalCourses > 0 {
		p.Percentage = math.Round(float64(p.CompletedCourses)/float64(p.TotalCourses)*1000) / 10
	}
	return p
}

// CurriculumOverview is a student's curriculum with progress and milestone eligibility.
type CurriculumOverview struct {
	Program            string             `json:"program"`
	Year               int                `json:"year"`
	Rules              GraduationRules    `json:"rules"`
	Semesters          []SemesterCourses  `json:"semesters"`
	Progress           CurriculumProgress `json:"progress"`
	EarnedCredits      int                `json:"earned_credits"`
	ThesisEligible     bool               `json:"thesis_eligible"`
	InternshipEligible bool               `json:"internship_eligible"`
}
