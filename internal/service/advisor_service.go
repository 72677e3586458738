package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

// DefaultAdvisorConcurrency bounds the risk computations of one overview.
const DefaultAdvisorConcurrency = 4

type adviseeLister interface {
	studentReader
	ListActiveByAdvisor(ctx context.Context, advisorID string) ([]models.Student, error)
}

type pendingRegistrationReader interface {
	ListPendingByStudents(ctx context.Context, studentIDs []string, periodID string) (map[string]models.Registration, error)
}

type riskCalculator interface {
	CalculateFor(ctx context.Context, student *models.Student, snap *CalendarSnapshot) (*models.RiskProfile, error)
}

// AdvisorService builds the risk dashboard of an academic advisor.
type AdvisorService struct {
	students      adviseeLister
	registrations pendingRegistrationReader
	risk          riskCalculator
	calendar      *CalendarService
	concurrency   int
	logger        *zap.Logger
}

// NewAdvisorService constructs AdvisorService.
func NewAdvisorService(students adviseeLister, registrations pendingRegistrationReader, risk riskCalculator, calendar *CalendarService, concurrency int, logger *zap.Logger) *AdvisorService {
	if concurrency <= 0 {
		concurrency = DefaultAdvisorConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvisorService{
		students:      students,
		registrations: registrations,
		risk:          risk,
		calendar:      calendar,
		concurrency:   concurrency,
		logger:        logger,
	}
}

// RiskOverview scores every active advisee and flags those who need attention.
func (s *AdvisorService) RiskOverview(ctx context.Context, advisorID string) (*models.AdviseeRiskOverview, error) {
	advisees, err := s.students.ListActiveByAdvisor(ctx, advisorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load advisees")
	}
	snap, err := s.calendar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	profiles := make([]*models.RiskProfile, len(advisees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range advisees {
		student := &advisees[i]
		g.Go(func() error {
			profile, err := s.risk.CalculateFor(gctx, student, snap)
			if err != nil {
				return err
			}
			profiles[i] = profile
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pending := map[string]models.Registration{}
	if period := snap.ActivePeriod(); period != nil {
		ids := make([]string, len(advisees))
		for i, student := range advisees {
			ids[i] = student.ID
		}
		pending, err = s.registrations.ListPendingByStudents(ctx, ids, period.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending registrations")
		}
	}

	rows := make([]models.AdviseeRisk, len(advisees))
	for i, student := range advisees {
		row := models.AdviseeRisk{Student: student, Risk: *profiles[i]}
		if reg, ok := pending[student.ID]; ok {
			row.PendingRegistration = &reg
		}
		row.NeedsAttention = row.Risk.IsHighRisk() || row.PendingRegistration != nil
		rows[i] = row
	}

	overview := BuildAdviseeOverview(advisorID, rows)
	s.logger.Info("advisee risk overview built",
		zap.String("advisor_id", advisorID),
		zap.Int("advisees", overview.Stats.Total),
		zap.Int("needs_attention", overview.Stats.NeedsAttention))
	return overview, nil
}

// AdviseeRisk scores one student of the advisor. Students of other advisors read as missing.
func (s *AdvisorService) AdviseeRisk(ctx context.Context, advisorID, studentID string) (*models.RiskProfile, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("student", studentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.AdvisorID == nil || *student.AdvisorID != advisorID {
		return nil, appErrors.NotFound("student", studentID)
	}
	snap, err := s.calendar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.risk.CalculateFor(ctx, student, snap)
}

// BuildAdviseeOverview sorts rows by score descending, groups them by level and counts the stats.
func BuildAdviseeOverview(advisorID string, rows []models.AdviseeRisk) *models.AdviseeRiskOverview {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Risk.Score > rows[j].Risk.Score
	})

	overview := &models.AdviseeRiskOverview{
		AdvisorID: advisorID,
		Advisees:  rows,
		ByLevel:   make(map[models.RiskLevel][]models.AdviseeRisk, len(models.RiskLevels)),
	}
	for _, level := range models.RiskLevels {
		overview.ByLevel[level] = []models.AdviseeRisk{}
	}
	for _, row := range rows {
		overview.ByLevel[row.Risk.Level] = append(overview.ByLevel[row.Risk.Level], row)
		overview.Stats.Total++
		if row.PendingRegistration != nil {
			overview.Stats.Pending++
		}
		if row.Risk.IsHighRisk() {
			overview.Stats.HighRisk++
		}
		if row.NeedsAttention {
			overview.Stats.NeedsAttention++
		}
	}
	return overview
}
