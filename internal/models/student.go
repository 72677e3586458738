package models

import "time"

// StudentStatus captures whether a student is currently studying.
type StudentStatus string

const (
	StudentStatusActive   StudentStatus = "ACTIVE"
	StudentStatusInactive StudentStatus = "INACTIVE"
)

// Student represents an enrolled university student.
type Student struct {
	ID             string        `db:"id" json:"id"`
	NIM            string        `db:"nim" json:"nim"`
	FullName       string        `db:"full_name" json:"full_name"`
	ProgramID      string        `db:"program_id" json:"program_id"`
	ProgramName    string        `db:"program_name" json:"program_name"`
	EnrollmentYear int           `db:"enrollment_year" json:"enrollment_year"`
	Status         StudentStatus `db:"status" json:"status"`
	AdvisorID      *string       `db:"advisor_id" json:"advisor_id,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Active reports whether the student may register for courses.
func (s Student) Active() bool {
	return s.Status == StudentStatusActive
}
