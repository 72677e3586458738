package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-krs/internal/models"
	"github.com/noah-isme/siakad-krs/pkg/cache"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

const activePeriodCacheKey = "calendar:active_period"

// DefaultLateEnrollmentGrace extends late enrollment past the enrollment end when no explicit window exists.
const DefaultLateEnrollmentGrace = 14 * 24 * time.Hour

type periodReader interface {
	FindActive(ctx context.Context) (*models.AcademicPeriod, error)
}

// CachedPeriod wraps the active period lookup so that "no active period" is cacheable as well.
type CachedPeriod struct {
	Period *models.AcademicPeriod `json:"period,omitempty"`
}

// NewPeriodCache builds the in-process active period cache. A non-positive TTL disables it, so
// every snapshot reads the period from the repository.
func NewPeriodCache(ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *CacheService[CachedPeriod] {
	if ttl <= 0 {
		return NewCacheService[CachedPeriod]("calendar", nil, metrics, logger)
	}
	return NewCacheService[CachedPeriod]("calendar", cache.NewMemory[CachedPeriod](4, ttl), metrics, logger)
}

// CalendarService resolves the active academic period and answers temporal questions about it.
type CalendarService struct {
	periods periodReader
	cache   *CacheService[CachedPeriod]
	grace   time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewCalendarService constructs CalendarService.
func NewCalendarService(periods periodReader, cache *CacheService[CachedPeriod], grace time.Duration, logger *zap.Logger) *CalendarService {
	if grace <= 0 {
		grace = DefaultLateEnrollmentGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{periods: periods, cache: cache, grace: grace, now: time.Now, logger: logger}
}

// WithClock overrides the time source.
func (s *CalendarService) WithClock(now func() time.Time) *CalendarService {
	if now != nil {
		s.now = now
	}
	return s
}

// Now returns the current instant from the service clock.
func (s *CalendarService) Now() time.Time {
	return s.now()
}

// Snapshot captures the active period and the current instant for one operation.
func (s *CalendarService) Snapshot(ctx context.Context) (*CalendarSnapshot, error) {
	period, err := s.activePeriod(ctx)
	if err != nil {
		return nil, err
	}
	return &CalendarSnapshot{period: period, now: s.now(), grace: s.grace}, nil
}

// Refresh drops the cached active period.
func (s *CalendarService) Refresh(ctx context.Context) error {
	if err := s.cache.Delete(ctx, activePeriodCacheKey); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh calendar")
	}
	s.logger.Info("calendar cache refreshed")
	return nil
}

// StudentSemester derives the running semester number of a student from the enrollment year.
func (s *CalendarService) StudentSemester(enrollmentYear int) int {
	return StudentSemesterAt(enrollmentYear, s.now())
}

// StudentSemesterAt computes the running semester at a given instant; odd semesters start in August.
func StudentSemesterAt(enrollmentYear int, at time.Time) int {
	semester := (at.Year() - enrollmentYear) * 2
	if at.Month() >= time.August {
		semester++
	}
	if semester < 1 {
		return 1
	}
	return semester
}

func (s *CalendarService) activePeriod(ctx context.Context) (*models.AcademicPeriod, error) {
	if cached, ok := s.cache.Get(ctx, activePeriodCacheKey); ok {
		return cached.Period, nil
	}
	period, err := s.periods.FindActive(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
		}
		period = nil
	}
	s.cache.Set(ctx, activePeriodCacheKey, CachedPeriod{Period: period})
	return period, nil
}

// CalendarSnapshot answers calendar questions against one frozen period and instant.
type CalendarSnapshot struct {
	period *models.AcademicPeriod
	now    time.Time
	grace  time.Duration
}

// NewCalendarSnapshot builds a snapshot directly, mainly for callers that already hold the period.
func NewCalendarSnapshot(period *models.AcademicPeriod, now time.Time, grace time.Duration) *CalendarSnapshot {
	if grace <= 0 {
		grace = DefaultLateEnrollmentGrace
	}
	return &CalendarSnapshot{period: period, now: now, grace: grace}
}

// ActivePeriod returns the active period or nil.
func (c *CalendarSnapshot) ActivePeriod() *models.AcademicPeriod {
	return c.period
}

// Now returns the frozen instant.
func (c *CalendarSnapshot) Now() time.Time {
	return c.now
}

// RequireActivePeriod returns the active period or NoActivePeriod.
func (c *CalendarSnapshot) RequireActivePeriod() (*models.AcademicPeriod, error) {
	if c.period == nil {
		return nil, appErrors.Clone(appErrors.ErrNoActivePeriod, "no active academic period")
	}
	return c.period, nil
}

// IsEnrollmentOpen is true inside an explicit enrollment window, or always when the period defines none.
func (c *CalendarSnapshot) IsEnrollmentOpen() bool {
	if c.period == nil {
		return false
	}
	return withinWindow(c.now, c.period.EnrollmentStart, c.period.EnrollmentEnd)
}

// IsLateEnrollmentOpen checks the explicit late window, then the grace period after enrollment end, then
// falls back to IsEnrollmentOpen.
func (c *CalendarSnapshot) IsLateEnrollmentOpen() bool {
	if c.period == nil {
		return false
	}
	if end := c.period.LateEnrollmentEnd; end != nil {
		if start := c.period.LateEnrollmentStart; start != nil && c.now.Before(*start) {
			return false
		}
		return !c.now.After(*end)
	}
	if end := c.period.EnrollmentEnd; end != nil {
		return !c.now.After(end.Add(c.grace))
	}
	return c.IsEnrollmentOpen()
}

// IsGradingOpen mirrors IsEnrollmentOpen for the grading window.
func (c *CalendarSnapshot) IsGradingOpen() bool {
	if c.period == nil {
		return false
	}
	return withinWindow(c.now, c.period.GradingStart, c.period.GradingEnd)
}

// CanEnroll reports whether either the regular or the late enrollment window is open.
func (c *CalendarSnapshot) CanEnroll() bool {
	return c.IsEnrollmentOpen() || c.IsLateEnrollmentOpen()
}

// DaysUntilEnrollmentCloses returns whole days left, 0 once past, nil without a period or end date.
func (c *CalendarSnapshot) DaysUntilEnrollmentCloses() *int {
	if c.period == nil || c.period.EnrollmentEnd == nil {
		return nil
	}
	end := *c.period.EnrollmentEnd
	days := 0
	if c.now.Before(end) {
		days = int(math.Floor(end.Sub(c.now).Hours() / 24))
	}
	return &days
}

// CurrentPhase picks the dominant phase: enrollment, late enrollment, grading, then classes in session.
func (c *CalendarSnapshot) CurrentPhase() models.CalendarPhase {
	switch {
	case c.IsEnrollmentOpen():
		return models.PhaseEnrollment
	case c.IsLateEnrollmentOpen():
		return models.PhaseLateEnrollment
	case c.IsGradingOpen():
		return models.PhaseGrading
	default:
		return models.PhaseInSession
	}
}

// Status renders the snapshot for API consumers.
func (c *CalendarSnapshot) Status() models.CalendarStatus {
	phase := c.CurrentPhase()
	status := models.CalendarStatus{
		Period:                    c.period,
		Phase:                     phase,
		PhaseLabel:                phase.Label(),
		EnrollmentOpen:            c.IsEnrollmentOpen(),
		LateEnrollmentOpen:        c.IsLateEnrollmentOpen(),
		GradingOpen:               c.IsGradingOpen(),
		DaysUntilEnrollmentCloses: c.DaysUntilEnrollmentCloses(),
		Now:                       c.now,
	}
	if c.period != nil {
		status.PeriodLabel = c.period.Label()
	}
	return status
}

// withinWindow treats a window as explicit only when both bounds are set.
func withinWindow(now time.Time, start, end *time.Time) bool {
	if start == nil || end == nil {
		return true
	}
	return !now.Before(*start) && !now.After(*end)
}
