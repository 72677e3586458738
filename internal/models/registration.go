package models

import "time"

// RegistrationStatus is the lifecycle state of a term registration.
type RegistrationStatus string

const (
	RegistrationDraft    RegistrationStatus = "DRAFT"
	RegistrationPending  RegistrationStatus = "PENDING"
	RegistrationApproved RegistrationStatus = "APPROVED"
	RegistrationRejected RegistrationStatus = "REJECTED"
)

// RegistrationTransitions lists the allowed target states per source state. Approved is terminal.
var RegistrationTransitions = map[RegistrationStatus][]RegistrationStatus{
	RegistrationDraft:    {RegistrationPending},
	RegistrationPending:  {RegistrationApproved, RegistrationRejected},
	RegistrationRejected: {RegistrationDraft},
}

// CanTransition reports whether from -> to is part of the lifecycle.
func CanTransition(from, to RegistrationStatus) bool {
	for _, allowed := range RegistrationTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Editable reports whether lines may be added or removed.
func (s RegistrationStatus) Editable() bool {
	return s == RegistrationDraft
}

// Registration is a student's course registration for one period.
type Registration struct {
	ID          string             `db:"id" json:"id"`
	StudentID   string             `db:"student_id" json:"student_id"`
	PeriodID    string             `db:"period_id" json:"period_id"`
	Status      RegistrationStatus `db:"status" json:"status"`
	Note        *string            `db:"note" json:"note,omitempty"`
	ReviewedBy  *string            `db:"reviewed_by" json:"reviewed_by,omitempty"`
	SubmittedAt *time.Time         `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationLine binds one section to a registration.
type RegistrationLine struct {
	ID             string    `db:"id" json:"id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	SectionID      string    `db:"section_id" json:"section_id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// RegistrationLineDetail is a line with its full section detail.
type RegistrationLineDetail struct {
	RegistrationLine
	Section SectionDetail `json:"section"`
}

// StatusChange describes a lifecycle transition to persist.
type StatusChange struct {
	From        RegistrationStatus
	To          RegistrationStatus
	Note        *string
	ReviewedBy  *string
	SubmittedAt *time.Time
	ReviewedAt  *time.Time
}

// RegistrationDetail is a registration with its lines and credit total.
type RegistrationDetail struct {
	Registration
	Lines        []RegistrationLineDetail `json:"lines"`
	TotalCredits int                      `json:"total_credits"`
}

// TotalCredits sums the course credits of the lines.
func TotalCredits(lines []RegistrationLineDetail) int {
	total := 0
	for _, line := range lines {
		total += line.Section.Course.Credits
	}
	return total
}

// EnrollmentStatus is a read-only snapshot of a student's registration situation.
type EnrollmentStatus struct {
	RegistrationStatus        RegistrationStatus `json:"registration_status"`
	CurrentCredits            int                `json:"current_credits"`
	MaxCredits                int                `json:"max_credits"`
	RemainingCredits          int                `json:"remaining_credits"`
	CanAddMore                bool               `json:"can_add_more"`
	EnrollmentOpen            bool               `json:"enrollment_open"`
	LateEnrollmentOpen        bool               `json:"late_enrollment_open"`
	DaysUntilEnrollmentCloses *int               `json:"days_until_enrollment_closes,omitempty"`
	Phase                     CalendarPhase      `json:"phase"`
}

// LockedEnrollment is the row-locked state an add decision is evaluated against.
type LockedEnrollment struct {
	Registration Registration
	Section      SectionDetail
	Lines        []RegistrationLineDetail
}
