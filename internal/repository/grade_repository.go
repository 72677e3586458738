package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-krs/internal/models"
)

// GradeRepository reads final grades joined with course and period.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListByStudent returns every grade record of a student, oldest period first.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.GradeRecord, error) {
	const query = `SELECT g.id, g.student_id, g.section_id, s.course_id, c.code AS course_code, c.name AS course_name,
        c.credits, s.period_id, p.year AS period_year, p.half AS period_half, g.letter
        FROM grades g
        JOIN sections s ON s.id = g.section_id
        JOIN courses c ON c.id = s.course_id
        JOIN academic_periods p ON p.id = s.period_id
        WHERE g.student_id = $1
        ORDER BY p.year, p.half, c.code`
	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return records, nil
}
