package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-krs/internal/models"
)

const studentColumns = `id, nim, full_name, program_id, program_name, enrollment_year, status, advisor_id, created_at, updated_at`

// StudentRepository reads student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListActiveByAdvisor returns the active advisees of an academic advisor.
func (r *StudentRepository) ListActiveByAdvisor(ctx context.Context, advisorID string) ([]models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students WHERE advisor_id = $1 AND status = $2 ORDER BY nim`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, advisorID, models.StudentStatusActive); err != nil {
		return nil, fmt.Errorf("list advisees: %w", err)
	}
	return students, nil
}
