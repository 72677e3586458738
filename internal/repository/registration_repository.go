package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-krs/internal/models"
)

const registrationColumns = `id, student_id, period_id, status, note, reviewed_by, submitted_at, reviewed_at, created_at, updated_at`

const lineDetailSelect = `SELECT rl.id, rl.registration_id, rl.section_id, rl.course_id, rl.created_at,
        s.period_id, s.name AS section_name, s.capacity, s.instructor_id,
        c.code AS course_code, c.name AS course_name, c.credits, c.semester, c.prerequisite_id, c.is_required
        FROM registration_lines rl
        JOIN sections s ON s.id = rl.section_id
        JOIN courses c ON c.id = rl.course_id`

type lineRow struct {
	models.RegistrationLine
	PeriodID       string  `db:"period_id"`
	SectionName    string  `db:"section_name"`
	Capacity       int     `db:"capacity"`
	InstructorID   *string `db:"instructor_id"`
	CourseCode     string  `db:"course_code"`
	CourseName     string  `db:"course_name"`
	Credits        int     `db:"credits"`
	Semester       int     `db:"semester"`
	PrerequisiteID *string `db:"prerequisite_id"`
	Required       bool    `db:"is_required"`
}

func (row lineRow) detail() models.RegistrationLineDetail {
	return models.RegistrationLineDetail{
		RegistrationLine: row.RegistrationLine,
		Section: models.SectionDetail{
			Section: models.Section{
				ID:           row.SectionID,
				CourseID:     row.CourseID,
				PeriodID:     row.PeriodID,
				Name:         row.SectionName,
				Capacity:     row.Capacity,
				InstructorID: row.InstructorID,
			},
			Course: models.Course{
				ID:             row.CourseID,
				Code:           row.CourseCode,
				Name:           row.CourseName,
				Credits:        row.Credits,
				Semester:       row.Semester,
				PrerequisiteID: row.PrerequisiteID,
				Required:       row.Required,
			},
		},
	}
}

// RegistrationRepository persists registrations and their lines.
type RegistrationRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// FindByID returns a registration by ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindByStudentPeriod returns the registration of a student in a period.
func (r *RegistrationRepository) FindByStudentPeriod(ctx context.Context, studentID, periodID string) (*models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations WHERE student_id = $1 AND period_id = $2`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, studentID, periodID); err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetOrCreate returns the registration for (student, period), creating a draft when absent.
func (r *RegistrationRepository) GetOrCreate(ctx context.Context, studentID, periodID string) (*models.Registration, bool, error) {
	now := r.now()
	const insert = `INSERT INTO registrations (id, student_id, period_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (student_id, period_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, insert, uuid.NewString(), studentID, periodID, models.RegistrationDraft, now)
	if err != nil {
		return nil, false, fmt.Errorf("create registration: %w", mapConflict(err))
	}
	created := false
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		created = true
	}
	reg, err := r.FindByStudentPeriod(ctx, studentID, periodID)
	if err != nil {
		return nil, false, fmt.Errorf("load registration: %w", err)
	}
	return reg, created, nil
}

// ListLines returns the lines of a registration with section detail.
func (r *RegistrationRepository) ListLines(ctx context.Context, registrationID string) ([]models.RegistrationLineDetail, error) {
	return listLines(ctx, r.db, registrationID)
}

// ListPendingByStudents returns pending registrations of the given students in a period, keyed by student.
func (r *RegistrationRepository) ListPendingByStudents(ctx context.Context, studentIDs []string, periodID string) (map[string]models.Registration, error) {
	result := make(map[string]models.Registration)
	if len(studentIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT `+registrationColumns+` FROM registrations
        WHERE period_id = ? AND status = ? AND student_id IN (?)`, periodID, models.RegistrationPending, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list pending registrations: %w", err)
	}
	for _, reg := range regs {
		result[reg.StudentID] = reg
	}
	return result, nil
}

// AddLineLocked locks the registration and the section rows, hands the locked state to decide and
// inserts the line when decide accepts it. Any decide error rolls back and is returned unchanged.
func (r *RegistrationRepository) AddLineLocked(ctx context.Context, registrationID, sectionID string, decide func(models.LockedEnrollment) error) (line *models.RegistrationLine, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin add line: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var reg models.Registration
	if err = tx.GetContext(ctx, &reg, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, registrationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock registration: %w", mapConflict(err))
	}

	var lockedID string
	if err = tx.GetContext(ctx, &lockedID, `SELECT id FROM sections WHERE id = $1 FOR UPDATE`, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock section: %w", mapConflict(err))
	}

	section, err := findSectionDetail(ctx, tx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("load locked section: %w", err)
	}
	lines, err := listLines(ctx, tx, registrationID)
	if err != nil {
		return nil, err
	}

	if err = decide(models.LockedEnrollment{Registration: reg, Section: *section, Lines: lines}); err != nil {
		return nil, err
	}

	line = &models.RegistrationLine{
		ID:             uuid.NewString(),
		RegistrationID: registrationID,
		SectionID:      sectionID,
		CourseID:       section.CourseID,
		CreatedAt:      r.now(),
	}
	const insert = `INSERT INTO registration_lines (id, registration_id, section_id, course_id, created_at)
        VALUES (:id, :registration_id, :section_id, :course_id, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, line); err != nil {
		return nil, fmt.Errorf("insert registration line: %w", mapConflict(err))
	}
	if _, err = tx.ExecContext(ctx, `UPDATE registrations SET updated_at = $2 WHERE id = $1`, registrationID, line.CreatedAt); err != nil {
		return nil, fmt.Errorf("touch registration: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add line: %w", mapConflict(err))
	}
	return line, nil
}

// DeleteLine removes the line of a section from a draft registration. It reports whether a row was removed.
func (r *RegistrationRepository) DeleteLine(ctx context.Context, registrationID, sectionID string) (bool, error) {
	const query = `DELETE FROM registration_lines rl
        USING registrations r
        WHERE rl.registration_id = r.id AND r.id = $1 AND rl.section_id = $2 AND r.status = $3`
	res, err := r.db.ExecContext(ctx, query, registrationID, sectionID, models.RegistrationDraft)
	if err != nil {
		return false, fmt.Errorf("delete registration line: %w", mapConflict(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete registration line: %w", err)
	}
	return affected > 0, nil
}

// UpdateStatus applies a lifecycle transition only if the row is still in change.From.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id string, change models.StatusChange) error {
	const query = `UPDATE registrations
        SET status = $2, note = $3, reviewed_by = $4, submitted_at = COALESCE($5, submitted_at), reviewed_at = $6, updated_at = $7
        WHERE id = $1 AND status = $8`
	res, err := r.db.ExecContext(ctx, query, id, change.To, change.Note, change.ReviewedBy, change.SubmittedAt, change.ReviewedAt, r.now(), change.From)
	if err != nil {
		return fmt.Errorf("update registration status: %w", mapConflict(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	if affected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func listLines(ctx context.Context, q sqlx.ExtContext, registrationID string) ([]models.RegistrationLineDetail, error) {
	query := lineDetailSelect + ` WHERE rl.registration_id = $1 ORDER BY c.code`
	var rows []lineRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, registrationID); err != nil {
		return nil, fmt.Errorf("list registration lines: %w", err)
	}
	details := make([]models.RegistrationLineDetail, len(rows))
	ids := make([]string, len(rows))
	for i, row := range rows {
		details[i] = row.detail()
		ids[i] = row.SectionID
	}
	slots, err := loadSlots(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range details {
		details[i].Section.TimeSlots = slots[details[i].SectionID]
	}
	return details, nil
}
