package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-krs/internal/models"
)

// Attendance status codes stored per meeting.
const (
	attendancePresent = "H"
	attendanceExcused = "I"
	attendanceSick    = "S"
	attendanceAbsent  = "A"
)

// AttendanceRepository aggregates meeting attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// SummariesBySections returns one summary per section the student has attendance records in.
func (r *AttendanceRepository) SummariesBySections(ctx context.Context, studentID string, sectionIDs []string) ([]models.AttendanceSummary, error) {
	if len(sectionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT student_id, section_id,
        COUNT(*) AS meetings_held,
        COUNT(*) FILTER (WHERE status = ?) AS present,
        COUNT(*) FILTER (WHERE status = ?) AS excused,
        COUNT(*) FILTER (WHERE status = ?) AS sick,
        COUNT(*) FILTER (WHERE status = ?) AS absent,
        COALESCE(ROUND(COUNT(*) FILTER (WHERE status = ?) * 100.0 / NULLIF(COUNT(*), 0), 1), 0) AS percentage
        FROM attendance_records
        WHERE student_id = ? AND section_id IN (?)
        GROUP BY student_id, section_id
        ORDER BY section_id`,
		attendancePresent, attendanceExcused, attendanceSick, attendanceAbsent, attendancePresent, studentID, sectionIDs)
	if err != nil {
		return nil, fmt.Errorf("build attendance query: %w", err)
	}
	var summaries []models.AttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("summarise attendance: %w", err)
	}
	return summaries, nil
}
