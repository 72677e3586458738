package models

import (
	"fmt"
	"time"
)

// PeriodHalf distinguishes the odd and even halves of an academic year.
type PeriodHalf int

const (
	PeriodHalfOdd  PeriodHalf = 1
	PeriodHalfEven PeriodHalf = 2
)

func (h PeriodHalf) String() string {
	if h == PeriodHalfEven {
		return "Even"
	}
	return "Odd"
}

// AcademicPeriod is one half of an academic year with optional activity windows.
type AcademicPeriod struct {
	ID                  string     `db:"id" json:"id"`
	Year                int        `db:"year" json:"year"`
	Half                PeriodHalf `db:"half" json:"half"`
	IsActive            bool       `db:"is_active" json:"is_active"`
	EnrollmentStart     *time.Time `db:"enrollment_start" json:"enrollment_start,omitempty"`
	EnrollmentEnd       *time.Time `db:"enrollment_end" json:"enrollment_end,omitempty"`
	LateEnrollmentStart *time.Time `db:"late_enrollment_start" json:"late_enrollment_start,omitempty"`
	LateEnrollmentEnd   *time.Time `db:"late_enrollment_end" json:"late_enrollment_end,omitempty"`
	GradingStart        *time.Time `db:"grading_start" json:"grading_start,omitempty"`
	GradingEnd          *time.Time `db:"grading_end" json:"grading_end,omitempty"`
}

// Label renders "2024/2025 Odd".
func (p AcademicPeriod) Label() string {
	return fmt.Sprintf("%d/%d %s", p.Year, p.Year+1, p.Half)
}

// Before orders periods chronologically.
func (p AcademicPeriod) Before(other AcademicPeriod) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Half < other.Half
}

// CalendarPhase names the dominant activity of the active period.
type CalendarPhase string

const (
	PhaseEnrollment     CalendarPhase = "ENROLLMENT"
	PhaseLateEnrollment CalendarPhase = "LATE_ENROLLMENT"
	PhaseGrading        CalendarPhase = "GRADING"
	PhaseInSession      CalendarPhase = "IN_SESSION"
)

var phaseLabels = map[CalendarPhase]string{
	PhaseEnrollment:     "Enrollment open",
	PhaseLateEnrollment: "Late enrollment",
	PhaseGrading:        "Grading",
	PhaseInSession:      "Classes in session",
}

// Label returns a human readable phase name.
func (p CalendarPhase) Label() string {
	if label, ok := phaseLabels[p]; ok {
		return label
	}
	return string(p)
}

// CalendarStatus is the serialisable view of a calendar snapshot.
type CalendarStatus struct {
	Period                    *AcademicPeriod `json:"period,omitempty"`
	PeriodLabel               string          `json:"period_label,omitempty"`
	Phase                     CalendarPhase   `json:"phase"`
	PhaseLabel                string          `json:"phase_label"`
	EnrollmentOpen            bool            `json:"enrollment_open"`
	LateEnrollmentOpen        bool            `json:"late_enrollment_open"`
	GradingOpen               bool            `json:"grading_open"`
	DaysUntilEnrollmentCloses *int            `json:"days_until_enrollment_closes,omitempty"`
	Now                       time.Time       `json:"now"`
}
