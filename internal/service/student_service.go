package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

// StudentService answers read-only academic questions about one student.
type StudentService struct {
	students    studentReader
	performance *PerformanceService
	curriculum  *CurriculumService
	logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(students studentReader, performance *PerformanceService, curriculum *CurriculumService, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, performance: performance, curriculum: curriculum, logger: logger}
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("student", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Performance returns the GPA summary, term history, grade distribution and credit allowance.
func (s *StudentService) Performance(ctx context.Context, id string) (*models.PerformanceReport, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.performance.Report(ctx, student.ID)
}

// Curriculum returns the student's curriculum version with progress and milestones.
func (s *StudentService) Curriculum(ctx context.Context, id string) (*models.CurriculumOverview, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	overview, err := s.curriculum.Overview(ctx, student)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("curriculum overview built",
		zap.String("student_id", student.ID),
		zap.Int("curriculum_year", overview.Year),
		zap.Float64("progress", overview.Progress.Percentage))
	return overview, nil
}
