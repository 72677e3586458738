package models

// GradeLetter is a final letter grade.
type GradeLetter string

const (
	GradeA      GradeLetter = "A"
	GradeAMinus GradeLetter = "A-"
	GradeBPlus  GradeLetter = "B+"
	GradeB      GradeLetter = "B"
	GradeBMinus GradeLetter = "B-"
	GradeCPlus  GradeLetter = "C+"
	GradeC      GradeLetter = "C"
	GradeD      GradeLetter = "D"
	GradeE      GradeLetter = "E"
)

var gradePoints = map[GradeLetter]float64{
	GradeA:      4.0,
	GradeAMinus: 3.7,
	GradeBPlus:  3.3,
	GradeB:      3.0,
	GradeBMinus: 2.7,
	GradeCPlus:  2.3,
	GradeC:      2.0,
	GradeD:      1.0,
	GradeE:      0.0,
}

// GradeLetters lists letters from best to worst.
var GradeLetters = []GradeLetter{GradeA, GradeAMinus, GradeBPlus, GradeB, GradeBMinus, GradeCPlus, GradeC, GradeD, GradeE}

// Points returns the grade point value. Unknown letters score zero.
func (g GradeLetter) Points() float64 {
	return gradePoints[g]
}

// Valid reports whether the letter is part of the grading scale.
func (g GradeLetter) Valid() bool {
	_, ok := gradePoints[g]
	return ok
}

// Failing reports whether the letter does not count as a pass.
func (g GradeLetter) Failing() bool {
	return g == GradeD || g == GradeE || !g.Valid()
}

// GradeRecord is a final grade joined with its course and period.
type GradeRecord struct {
	ID         string      `db:"id" json:"id"`
	StudentID  string      `db:"student_id" json:"student_id"`
	SectionID  string      `db:"section_id" json:"section_id"`
	CourseID   string      `db:"course_id" json:"course_id"`
	CourseCode string      `db:"course_code" json:"course_code"`
	CourseName string      `db:"course_name" json:"course_name"`
	Credits    int         `db:"credits" json:"credits"`
	PeriodID   string      `db:"period_id" json:"period_id"`
	PeriodYear int         `db:"period_year" json:"period_year"`
	PeriodHalf PeriodHalf  `db:"period_half" json:"period_half"`
	Letter     GradeLetter `db:"letter" json:"letter"`
}

// GPASummary is the cumulative grade point average with credit totals.
type GPASummary struct {
	GPA           float64 `json:"gpa"`
	TotalCredits  int     `json:"total_credits"`
	EarnedCredits int     `json:"earned_credits"`
}

// TermGPA is the grade point average of one period.
type TermGPA struct {
	PeriodID string     `json:"period_id"`
	Label    string     `json:"label"`
	Year     int        `json:"year"`
	Half     PeriodHalf `json:"half"`
	GPA      float64    `json:"gpa"`
	Credits  int        `json:"credits"`
	HasData  bool       `json:"has_data"`
}

// CreditAllowance is the ceiling derived from the last term GPA.
type CreditAllowance struct {
	LastGPA    float64 `json:"last_gpa"`
	Defaulted  bool    `json:"defaulted"`
	MaxCredits int     `json:"max_credits"`
}

// PerformanceReport bundles the performance views of a student.
type PerformanceReport struct {
	Cumulative   GPASummary          `json:"cumulative"`
	History      []TermGPA           `json:"history"`
	Distribution map[GradeLetter]int `json:"distribution"`
	Allowance    CreditAllowance     `json:"allowance"`
}
