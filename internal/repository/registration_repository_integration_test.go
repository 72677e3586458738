package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

func setupIntegrationDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("set TEST_INTEGRATION to run postgres integration tests")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:16-alpine",
		postgres.WithDatabase("krs_test"),
		postgres.WithUsername("krs"),
		postgres.WithPassword("krs-test"),
		postgres.WithInitScripts("testdata/schema.sql"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSection(t *testing.T, db *sqlx.DB, capacity int) {
	t.Helper()
	stmts := []string{
		`INSERT INTO academic_periods (id, year, half, is_active) VALUES ('per-1', 2024, 1, TRUE)`,
		`INSERT INTO courses (id, code, name, credits, semester) VALUES ('crs-1', 'IF101', 'Dasar Pemrograman', 3, 1)`,
		fmt.Sprintf(`INSERT INTO sections (id, course_id, period_id, name, capacity) VALUES ('sec-1', 'crs-1', 'per-1', 'A', %d)`, capacity),
		`INSERT INTO section_slots (section_id, day_of_week, start_time, end_time) VALUES ('sec-1', 1, '08:00', '10:30')`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func TestRegistrationRepositoryAddLineLockedHonoursCapacityUnderContention(t *testing.T) {
	db := setupIntegrationDB(t)
	const capacity = 3
	const contenders = 10
	seedSection(t, db, capacity)

	repo := NewRegistrationRepository(db)
	ctx := context.Background()
	regIDs := make([]string, contenders)
	for i := 0; i < contenders; i++ {
		studentID := fmt.Sprintf("stu-%02d", i)
		_, err := db.Exec(`INSERT INTO students (id, nim, full_name, program_id, program_name, enrollment_year)
            VALUES ($1, $2, $3, 'prog-if', 'Informatika', 2024)`, studentID, fmt.Sprintf("24010%02d", i), "Student "+studentID)
		require.NoError(t, err)
		reg, created, err := repo.GetOrCreate(ctx, studentID, "per-1")
		require.NoError(t, err)
		require.True(t, created)
		regIDs[i] = reg.ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		full     int
	)
	for _, regID := range regIDs {
		wg.Add(1)
		go func(regID string) {
			defer wg.Done()
			_, err := repo.AddLineLocked(ctx, regID, "sec-1", func(state models.LockedEnrollment) error {
				if !state.Section.HasSeat() {
					return appErrors.ClassFull(state.Section.Course.Code, state.Section.Capacity)
				}
				return nil
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case appErrors.ErrClassFull.Is(err):
				full++
			default:
				t.Errorf("unexpected add error: %v", err)
			}
		}(regID)
	}
	wg.Wait()

	assert.Equal(t, capacity, accepted)
	assert.Equal(t, contenders-capacity, full)

	var enrolled int
	require.NoError(t, db.Get(&enrolled, `SELECT COUNT(*) FROM registration_lines WHERE section_id = 'sec-1'`))
	assert.Equal(t, capacity, enrolled)
}

func TestRegistrationRepositoryGetOrCreateIsIdempotent(t *testing.T) {
	db := setupIntegrationDB(t)
	seedSection(t, db, 1)
	_, err := db.Exec(`INSERT INTO students (id, nim, full_name, program_id, program_name, enrollment_year)
        VALUES ('stu-1', '2401001', 'Ani', 'prog-if', 'Informatika', 2024)`)
	require.NoError(t, err)

	repo := NewRegistrationRepository(db)
	first, created, err := repo.GetOrCreate(context.Background(), "stu-1", "per-1")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.GetOrCreate(context.Background(), "stu-1", "per-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}
