package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-krs/internal/models"
)

const sectionDetailSelect = `SELECT s.id, s.course_id, s.period_id, s.name, s.capacity, s.instructor_id,
        c.code AS course_code, c.name AS course_name, c.credits, c.semester, c.prerequisite_id, c.is_required,
        (SELECT COUNT(*) FROM registration_lines rl WHERE rl.section_id = s.id) AS enrolled_count
        FROM sections s
        JOIN courses c ON c.id = s.course_id`

type sectionRow struct {
	models.Section
	CourseCode     string  `db:"course_code"`
	CourseName     string  `db:"course_name"`
	Credits        int     `db:"credits"`
	Semester       int     `db:"semester"`
	PrerequisiteID *string `db:"prerequisite_id"`
	Required       bool    `db:"is_required"`
	EnrolledCount  int     `db:"enrolled_count"`
}

func (row sectionRow) detail() models.SectionDetail {
	return models.SectionDetail{
		Section: row.Section,
		Course: models.Course{
			ID:             row.CourseID,
			Code:           row.CourseCode,
			Name:           row.CourseName,
			Credits:        row.Credits,
			Semester:       row.Semester,
			PrerequisiteID: row.PrerequisiteID,
			Required:       row.Required,
		},
		EnrolledCount: row.EnrolledCount,
	}
}

// SectionRepository reads course sections, their courses and weekly slots.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindDetail returns a section with course, slots and enrolled count.
func (r *SectionRepository) FindDetail(ctx context.Context, id string) (*models.SectionDetail, error) {
	return findSectionDetail(ctx, r.db, id)
}

// ListOfferings returns every section of a period ordered by course semester, code and section name.
func (r *SectionRepository) ListOfferings(ctx context.Context, periodID string) ([]models.SectionDetail, error) {
	query := sectionDetailSelect + ` WHERE s.period_id = $1 ORDER BY c.semester, c.code, s.name`
	var rows []sectionRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, periodID); err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	details := make([]models.SectionDetail, len(rows))
	ids := make([]string, len(rows))
	for i, row := range rows {
		details[i] = row.detail()
		ids[i] = row.ID
	}
	slots, err := loadSlots(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range details {
		details[i].TimeSlots = slots[details[i].ID]
	}
	return details, nil
}

// FindCourse returns a course by ID.
func (r *SectionRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, name, credits, semester, prerequisite_id, is_required FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

func findSectionDetail(ctx context.Context, q sqlx.ExtContext, id string) (*models.SectionDetail, error) {
	query := sectionDetailSelect + ` WHERE s.id = $1`
	var row sectionRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		return nil, err
	}
	detail := row.detail()
	slots, err := loadSlots(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	detail.TimeSlots = slots[id]
	return &detail, nil
}

func loadSlots(ctx context.Context, q sqlx.ExtContext, sectionIDs []string) (map[string][]models.TimeSlot, error) {
	result := make(map[string][]models.TimeSlot, len(sectionIDs))
	if len(sectionIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT section_id, day_of_week, start_time, end_time FROM section_slots
        WHERE section_id IN (?) ORDER BY day_of_week, start_time`, sectionIDs)
	if err != nil {
		return nil, fmt.Errorf("build slot query: %w", err)
	}
	var slots []models.TimeSlot
	if err := sqlx.SelectContext(ctx, q, &slots, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load section slots: %w", err)
	}
	for _, slot := range slots {
		result[slot.SectionID] = append(result[slot.SectionID], slot)
	}
	return result, nil
}
