package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

// CurriculumCatalog supplies versioned curriculum catalogues and graduation rules.
type CurriculumCatalog interface {
	Versions(program string) []int
	Catalogue(program string, year int) (map[int][]models.CurriculumCourse, bool)
	Rules(program string) models.GraduationRules
	ProgramKey(programName string) string
}

// CurriculumService resolves the curriculum version that applies to a cohort.
type CurriculumService struct {
	catalog CurriculumCatalog
	cache   *CacheService[models.CurriculumVersion]
	grades  gradeReader
	now     func() time.Time
	logger  *zap.Logger
}

// NewCurriculumService constructs CurriculumService.
func NewCurriculumService(catalog CurriculumCatalog, cache *CacheService[models.CurriculumVersion], grades gradeReader, logger *zap.Logger) *CurriculumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurriculumService{catalog: catalog, cache: cache, grades: grades, now: time.Now, logger: logger}
}

// WithClock overrides the time source used when a program has no versions.
func (s *CurriculumService) WithClock(now func() time.Time) *CurriculumService {
	if now != nil {
		s.now = now
	}
	return s
}

// Resolve returns the curriculum of program for students who enrolled in enrollmentYear.
func (s *CurriculumService) Resolve(ctx context.Context, program string, enrollmentYear int) (*models.CurriculumVersion, error) {
	program = strings.ToLower(strings.TrimSpace(program))
	if program == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "program is required")
	}
	year := s.selectVersion(program, enrollmentYear)
	key := curriculumCacheKey(program, year)

	if cached, ok := s.cache.Get(ctx, key); ok {
		return &cached, nil
	}

	semesters, ok := s.catalog.Catalogue(program, year)
	if !ok {
		s.logger.Debug("curriculum catalogue missing", zap.String("program", program), zap.Int("year", year))
		semesters = map[int][]models.CurriculumCourse{}
	}
	version := models.CurriculumVersion{
		Program:   program,
		Year:      year,
		Semesters: semesters,
		Rules:     s.catalog.Rules(program).WithDefaults(),
	}
	s.cache.Set(ctx, key, version)
	return &version, nil
}

// ResolveForStudent maps the student's program name to a configured program and resolves its curriculum.
func (s *CurriculumService) ResolveForStudent(ctx context.Context, student *models.Student) (*models.CurriculumVersion, error) {
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is required")
	}
	return s.Resolve(ctx, s.catalog.ProgramKey(student.ProgramName), student.EnrollmentYear)
}

// AvailableVersions lists the configured version years of a program.
func (s *CurriculumService) AvailableVersions(_ context.Context, program string) []int {
	return s.catalog.Versions(strings.ToLower(strings.TrimSpace(program)))
}

// Invalidate drops every cached version of one program.
func (s *CurriculumService) Invalidate(ctx context.Context, program string) error {
	program = strings.ToLower(strings.TrimSpace(program))
	if err := s.cache.Invalidate(ctx, program+":"); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate curriculum cache")
	}
	s.logger.Info("curriculum cache invalidated", zap.String("program", program))
	return nil
}

// InvalidateAll drops the whole curriculum cache.
func (s *CurriculumService) InvalidateAll(ctx context.Context) error {
	if err := s.cache.Purge(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge curriculum cache")
	}
	s.logger.Info("curriculum cache purged")
	return nil
}

// CompareProgress measures the student's passed courses against their curriculum.
func (s *CurriculumService) CompareProgress(ctx context.Context, student *models.Student) (models.CurriculumProgress, error) {
	overview, err := s.Overview(ctx, student)
	if err != nil {
		return models.CurriculumProgress{}, err
	}
	return overview.Progress, nil
}

// Overview returns the curriculum, progress and milestone eligibility of a student.
func (s *CurriculumService) Overview(ctx context.Context, student *models.Student) (*models.CurriculumOverview, error) {
	version, err := s.ResolveForStudent(ctx, student)
	if err != nil {
		return nil, err
	}
	records, err := s.grades.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	standing := Standing(records)
	earned := SummarizeGPA(records).EarnedCredits

	return &models.CurriculumOverview{
		Program:            version.Program,
		Year:               version.Year,
		Rules:              version.Rules,
		Semesters:          version.AllSemesters(),
		Progress:           version.CalculateProgress(standing.PassedCodes),
		EarnedCredits:      earned,
		ThesisEligible:     earned >= version.MinCreditsForThesis(),
		InternshipEligible: earned >= version.MinCreditsForInternship(),
	}, nil
}

// selectVersion picks the newest version not later than enrollmentYear, else the oldest one.
func (s *CurriculumService) selectVersion(program string, enrollmentYear int) int {
	versions := s.catalog.Versions(program)
	if len(versions) == 0 {
		return s.now().Year()
	}
	selected, oldest := 0, versions[0]
	for _, v := range versions {
		if v <= enrollmentYear && v > selected {
			selected = v
		}
		if v < oldest {
			oldest = v
		}
	}
	if selected == 0 {
		return oldest
	}
	return selected
}

func curriculumCacheKey(program string, year int) string {
	return program + ":" + strconv.Itoa(year)
}
