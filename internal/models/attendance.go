package models

// AttendanceSummary aggregates a student's meetings in one section.
type AttendanceSummary struct {
	StudentID    string  `db:"student_id" json:"student_id"`
	SectionID    string  `db:"section_id" json:"section_id"`
	MeetingsHeld int     `db:"meetings_held" json:"meetings_held"`
	Present      int     `db:"present" json:"present"`
	Excused      int     `db:"excused" json:"excused"`
	Sick         int     `db:"sick" json:"sick"`
	Absent       int     `db:"absent" json:"absent"`
	Percentage   float64 `db:"percentage" json:"percentage"`
}
