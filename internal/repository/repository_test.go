package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

var studentCols = []string{"id", "nim", "full_name", "program_id", "program_name", "enrollment_year", "status", "advisor_id", "created_at", "updated_at"}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(studentCols).AddRow("stu-1", "2101001", "Ani", "prog-if", "Teknik Informatika", 2021, "ACTIVE", "adv-1", now, now))

	student, err := repo.FindByID(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 2021, student.EnrollmentYear)
	assert.True(t, student.Active())
	require.NotNil(t, student.AdvisorID)
	assert.Equal(t, "adv-1", *student.AdvisorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListActiveByAdvisor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE advisor_id = $1 AND status = $2 ORDER BY nim")).
		WithArgs("adv-1", models.StudentStatusActive).
		WillReturnRows(sqlmock.NewRows(studentCols).
			AddRow("stu-1", "2101001", "Ani", "prog-if", "Informatika", 2021, "ACTIVE", "adv-1", now, now).
			AddRow("stu-2", "2101002", "Budi", "prog-if", "Informatika", 2021, "ACTIVE", "adv-1", now, now))

	students, err := repo.ListActiveByAdvisor(context.Background(), "adv-1")
	require.NoError(t, err)
	assert.Len(t, students, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryFindActiveNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM academic_periods p WHERE p.is_active = TRUE")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActive(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	start := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM academic_periods p WHERE p.is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "year", "half", "is_active", "enrollment_start", "enrollment_end",
			"late_enrollment_start", "late_enrollment_end", "grading_start", "grading_end"}).
			AddRow("per-1", 2024, 1, true, start, end, nil, nil, nil, nil))

	period, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PeriodHalfOdd, period.Half)
	require.NotNil(t, period.EnrollmentEnd)
	assert.Nil(t, period.LateEnrollmentEnd)
	require.NoError(t, mock.ExpectationsWereMet())
}

var sectionCols = []string{"id", "course_id", "period_id", "name", "capacity", "instructor_id",
	"course_code", "course_name", "credits", "semester", "prerequisite_id", "is_required", "enrolled_count"}

func TestSectionRepositoryListOfferings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.period_id = $1 ORDER BY c.semester, c.code, s.name")).
		WithArgs("per-1").
		WillReturnRows(sqlmock.NewRows(sectionCols).
			AddRow("sec-1", "crs-1", "per-1", "A", 40, nil, "IF101", "Dasar Pemrograman", 3, 1, nil, true, 12).
			AddRow("sec-2", "crs-2", "per-1", "A", 30, nil, "IF201", "Struktur Data", 3, 2, "crs-1", true, 30))
	mock.ExpectQuery(regexp.QuoteMeta("FROM section_slots\n        WHERE section_id IN ($1, $2)")).
		WithArgs("sec-1", "sec-2").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "day_of_week", "start_time", "end_time"}).
			AddRow("sec-1", 1, "08:00:00", "10:30:00").
			AddRow("sec-2", 2, "13:00:00", "15:30:00"))

	offerings, err := repo.ListOfferings(context.Background(), "per-1")
	require.NoError(t, err)
	require.Len(t, offerings, 2)
	assert.Equal(t, "IF101", offerings[0].Course.Code)
	assert.True(t, offerings[0].HasSeat())
	assert.False(t, offerings[1].HasSeat())
	require.NotNil(t, offerings[1].Course.PrerequisiteID)
	assert.Equal(t, "crs-1", *offerings[1].Course.PrerequisiteID)
	require.Len(t, offerings[0].TimeSlots, 1)
	assert.Equal(t, time.Monday, offerings[0].TimeSlots[0].Day)
	require.NoError(t, mock.ExpectationsWereMet())
}

var registrationCols = []string{"id", "student_id", "period_id", "status", "note", "reviewed_by", "submitted_at", "reviewed_at", "created_at", "updated_at"}

var lineCols = []string{"id", "registration_id", "section_id", "course_id", "created_at", "period_id", "section_name", "capacity",
	"instructor_id", "course_code", "course_name", "credits", "semester", "prerequisite_id", "is_required"}

func TestRegistrationRepositoryGetOrCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, period_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "per-1", models.RegistrationDraft, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE student_id = $1 AND period_id = $2")).
		WithArgs("stu-1", "per-1").
		WillReturnRows(sqlmock.NewRows(registrationCols).AddRow("reg-1", "stu-1", "per-1", "DRAFT", nil, nil, nil, nil, now, now))

	reg, created, err := repo.GetOrCreate(context.Background(), "stu-1", "per-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RegistrationDraft, reg.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectLockedState(mock sqlmock.Sqlmock, now time.Time) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE id = $1 FOR UPDATE")).
		WithArgs("reg-1").
		WillReturnRows(sqlmock.NewRows(registrationCols).AddRow("reg-1", "stu-1", "per-1", "DRAFT", nil, nil, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM sections WHERE id = $1 FOR UPDATE")).
		WithArgs("sec-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sec-2"))
	mock.ExpectQuery(regexp.QuoteMeta("JOIN courses c ON c.id = s.course_id WHERE s.id = $1")).
		WithArgs("sec-2").
		WillReturnRows(sqlmock.NewRows(sectionCols).AddRow("sec-2", "crs-2", "per-1", "A", 30, nil, "IF201", "Struktur Data", 3, 2, nil, true, 29))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE section_id IN ($1)")).
		WithArgs("sec-2").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "day_of_week", "start_time", "end_time"}))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE rl.registration_id = $1 ORDER BY c.code")).
		WithArgs("reg-1").
		WillReturnRows(sqlmock.NewRows(lineCols).
			AddRow("line-1", "reg-1", "sec-1", "crs-1", now, "per-1", "A", 40, nil, "IF101", "Dasar Pemrograman", 3, 1, nil, true))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE section_id IN ($1)")).
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "day_of_week", "start_time", "end_time"}).
			AddRow("sec-1", 1, "08:00:00", "10:00:00"))
}

func TestRegistrationRepositoryAddLineLockedInserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	expectLockedState(mock, now)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registration_lines")).
		WithArgs(sqlmock.AnyArg(), "reg-1", "sec-2", "crs-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET updated_at = $2 WHERE id = $1")).
		WithArgs("reg-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen models.LockedEnrollment
	line, err := repo.AddLineLocked(context.Background(), "reg-1", "sec-2", func(state models.LockedEnrollment) error {
		seen = state
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "crs-2", line.CourseID)
	assert.Equal(t, 29, seen.Section.EnrolledCount)
	require.Len(t, seen.Lines, 1)
	require.Len(t, seen.Lines[0].Section.TimeSlots, 1)
	assert.Equal(t, "IF101", seen.Lines[0].Section.Course.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryAddLineLockedRollsBackOnRejection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	expectLockedState(mock, time.Now())
	mock.ExpectRollback()

	rejection := appErrors.ClassFull("IF201", 30)
	_, err := repo.AddLineLocked(context.Background(), "reg-1", "sec-2", func(models.LockedEnrollment) error {
		return rejection
	})
	assert.Same(t, rejection, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryAddLineLockedMapsSerializationFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE id = $1 FOR UPDATE")).
		WithArgs("reg-1").
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	_, err := repo.AddLineLocked(context.Background(), "reg-1", "sec-2", func(models.LockedEnrollment) error { return nil })
	assert.ErrorIs(t, err, appErrors.ErrTransactionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryUpdateStatusStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	note := "incomplete"
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $8")).
		WithArgs("reg-1", models.RegistrationRejected, &note, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), models.RegistrationPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "reg-1", models.StatusChange{
		From: models.RegistrationPending,
		To:   models.RegistrationRejected,
		Note: &note,
	})
	assert.True(t, errors.Is(err, ErrStaleStatus))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryDeleteLine(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM registration_lines rl")).
		WithArgs("reg-1", "sec-1", models.RegistrationDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := repo.DeleteLine(context.Background(), "reg-1", "sec-1")
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryListPendingByStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE period_id = $1 AND status = $2 AND student_id IN ($3, $4)")).
		WithArgs("per-1", models.RegistrationPending, "stu-1", "stu-2").
		WillReturnRows(sqlmock.NewRows(registrationCols).AddRow("reg-2", "stu-2", "per-1", "PENDING", nil, nil, now, nil, now, now))

	pending, err := repo.ListPendingByStudents(context.Background(), []string{"stu-1", "stu-2"}, "per-1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, "reg-2", pending["stu-2"].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE g.student_id = $1\n        ORDER BY p.year, p.half, c.code")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "section_id", "course_id", "course_code", "course_name",
			"credits", "period_id", "period_year", "period_half", "letter"}).
			AddRow("g-1", "stu-1", "sec-1", "crs-1", "IF101", "Dasar Pemrograman", 3, "per-0", 2023, 1, "B+").
			AddRow("g-2", "stu-1", "sec-3", "crs-3", "IF102", "Matematika Diskrit", 3, "per-0", 2023, 1, "E"))

	records, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.GradeBPlus, records[0].Letter)
	assert.True(t, records[1].Letter.Failing())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySummariesBySections(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $6 AND section_id IN ($7, $8)")).
		WithArgs("H", "I", "S", "A", "H", "stu-1", "sec-1", "sec-2").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "section_id", "meetings_held", "present", "excused", "sick", "absent", "percentage"}).
			AddRow("stu-1", "sec-1", 14, 12, 1, 0, 1, 85.7))

	summaries, err := repo.SummariesBySections(context.Background(), "stu-1", []string{"sec-1", "sec-2"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 85.7, summaries[0].Percentage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryNoSections(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	summaries, err := repo.SummariesBySections(context.Background(), "stu-1", nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	require.NoError(t, mock.ExpectationsWereMet())
}
