package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-krs/internal/models"
)

const periodColumns = `p.id, p.year, p.half, p.is_active, p.enrollment_start, p.enrollment_end,
        p.late_enrollment_start, p.late_enrollment_end, p.grading_start, p.grading_end`

// PeriodRepository reads academic periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// FindActive returns the active period or sql.ErrNoRows.
func (r *PeriodRepository) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM academic_periods p WHERE p.is_active = TRUE ORDER BY p.year DESC, p.half DESC LIMIT 1`
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListByStudent returns the periods a student registered in, oldest first.
func (r *PeriodRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AcademicPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM academic_periods p
        JOIN registrations r ON r.period_id = p.id
        WHERE r.student_id = $1
        ORDER BY p.year, p.half`
	var periods []models.AcademicPeriod
	if err := r.db.SelectContext(ctx, &periods, query, studentID); err != nil {
		return nil, fmt.Errorf("list student periods: %w", err)
	}
	return periods, nil
}
