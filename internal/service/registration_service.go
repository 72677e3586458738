package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-krs/internal/models"
	"github.com/noah-isme/siakad-krs/internal/repository"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
	"github.com/noah-isme/siakad-krs/pkg/logger"
)

type registrationStore interface {
	registrationReader
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	GetOrCreate(ctx context.Context, studentID, periodID string) (*models.Registration, bool, error)
	AddLineLocked(ctx context.Context, registrationID, sectionID string, decide func(models.LockedEnrollment) error) (*models.RegistrationLine, error)
	DeleteLine(ctx context.Context, registrationID, sectionID string) (bool, error)
	UpdateStatus(ctx context.Context, id string, change models.StatusChange) error
}

type sectionReader interface {
	FindDetail(ctx context.Context, id string) (*models.SectionDetail, error)
	FindCourse(ctx context.Context, id string) (*models.Course, error)
}

// AddSectionRequest adds one section to the student's active registration.
type AddSectionRequest struct {
	SectionID string `json:"section_id" validate:"required"`
}

// ReviewRequest carries an advisor's decision on a pending registration.
type ReviewRequest struct {
	ReviewerID string  `json:"reviewer_id" validate:"required"`
	Note       *string `json:"note" validate:"omitempty,max=500"`
}

// RegistrationView bundles a registration with its status summary.
type RegistrationView struct {
	Registration *models.RegistrationDetail `json:"registration"`
	Status       models.EnrollmentStatus    `json:"status"`
}

// RegistrationService drives the registration lifecycle of the active period.
type RegistrationService struct {
	students      studentReader
	registrations registrationStore
	sections      sectionReader
	performance   *PerformanceService
	calendar      *CalendarService
	validate      *validator.Validate
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(
	students studentReader,
	registrations registrationStore,
	sections sectionReader,
	performance *PerformanceService,
	calendar *CalendarService,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		students:      students,
		registrations: registrations,
		sections:      sections,
		performance:   performance,
		calendar:      calendar,
		validate:      validate,
		metrics:       metrics,
		logger:        logger,
	}
}

// GetOrCreateActive returns the student's registration in the active period, creating a draft when missing.
func (s *RegistrationService) GetOrCreateActive(ctx context.Context, studentID string) (*models.Registration, error) {
	student, err := s.activeStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	snap, err := s.calendar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	period, err := snap.RequireActivePeriod()
	if err != nil {
		return nil, err
	}
	return s.getOrCreate(ctx, student.ID, period.ID)
}

// View returns the active registration with its lines and status summary.
func (s *RegistrationService) View(ctx context.Context, studentID string) (*RegistrationView, error) {
	reg, err := s.GetOrCreateActive(ctx, studentID)
	if err != nil {
		return nil, err
	}
	detail, err := s.detail(ctx, reg)
	if err != nil {
		return nil, err
	}
	snap, err := s.calendar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	allowance, err := s.performance.CeilingFor(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &RegistrationView{
		Registration: detail,
		Status:       EnrollmentStatusSummary(reg, detail.Lines, allowance.MaxCredits, snap),
	}, nil
}

// Detail returns a registration with its line details and credit total.
func (s *RegistrationService) Detail(ctx context.Context, registrationID string) (*models.RegistrationDetail, error) {
	reg, err := s.findRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, reg)
}

// AddSection evaluates the enrollment policy against the locked registration and inserts the line.
func (s *RegistrationService) AddSection(ctx context.Context, studentID string, req AddSectionRequest) (*models.RegistrationLine, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	student, err := s.activeStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	snap, err := s.calendar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	period, err := snap.RequireActivePeriod()
	if err != nil {
		return nil, err
	}

	section, err := s.sections.FindDetail(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("section", req.SectionID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.PeriodID != period.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section is not offered in the active period")
	}
	prerequisite, err := s.prerequisiteOf(ctx, section.Course)
	if err != nil {
		return nil, err
	}

	records, history, err := s.performance.loadHistory(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	allowance := s.performance.AllowanceFromHistory(history)
	standing := Standing(records)

	reg, err := s.getOrCreate(ctx, student.ID, period.ID)
	if err != nil {
		return nil, err
	}

	line, err := s.registrations.AddLineLocked(ctx, reg.ID, req.SectionID, func(locked models.LockedEnrollment) error {
		result := EvaluateEnrollment(EnrollmentFacts{
			EnrollmentOpen:     snap.IsEnrollmentOpen(),
			LateEnrollmentOpen: snap.IsLateEnrollmentOpen(),
			Registration:       locked.Registration,
			Lines:              locked.Lines,
			Section:            locked.Section,
			Prerequisite:       prerequisite,
			MaxCredits:         allowance.MaxCredits,
			Passed:             standing.Passed,
		})
		if !result.Allowed() {
			s.metrics.RecordPolicyViolation(result.Check)
			logger.WithContext(ctx, s.logger).Info("enrollment rejected",
				zap.String("student_id", student.ID),
				zap.String("section_id", req.SectionID),
				zap.String("check", result.Check))
		}
		return result.AsError()
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("section", req.SectionID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add section")
	}

	logger.WithContext(ctx, s.logger).Info("section added",
		zap.String("student_id", student.ID),
		zap.String("registration_id", reg.ID),
		zap.String("section_id", line.SectionID))
	return line, nil
}

// RemoveSection drops a section from the student's draft registration.
func (s *RegistrationService) RemoveSection(ctx context.Context, studentID, sectionID string) error {
	reg, err := s.activeRegistration(ctx, studentID)
	if err != nil {
		return err
	}
	if !reg.Status.Editable() {
		return appErrors.RegistrationLocked(string(reg.Status))
	}
	removed, err := s.registrations.DeleteLine(ctx, reg.ID, sectionID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove section")
	}
	if !removed {
		// The row may have moved out of draft after it was read.
		current, err := s.findRegistration(ctx, reg.ID)
		if err == nil && !current.Status.Editable() {
			return appErrors.RegistrationLocked(string(current.Status))
		}
		return appErrors.NotFound("registration line", sectionID)
	}
	logger.WithContext(ctx, s.logger).Info("section removed",
		zap.String("student_id", studentID),
		zap.String("registration_id", reg.ID),
		zap.String("section_id", sectionID))
	return nil
}

// Submit sends the student's draft registration to the advisor.
func (s *RegistrationService) Submit(ctx context.Context, studentID string) (*models.Registration, error) {
	reg, err := s.activeRegistration(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(reg.Status, models.RegistrationPending) {
		return nil, appErrors.InvalidStateTransition(string(reg.Status), string(models.RegistrationPending))
	}
	lines, err := s.registrations.ListLines(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration lines")
	}
	if err := ValidateSubmission(lines); err != nil {
		return nil, err
	}
	now := s.calendar.Now()
	change := changeFrom(reg, models.RegistrationPending)
	change.SubmittedAt = &now
	return s.transition(ctx, reg, change)
}

// Approve accepts a pending registration.
func (s *RegistrationService) Approve(ctx context.Context, registrationID string, req ReviewRequest) (*models.Registration, error) {
	return s.review(ctx, registrationID, models.RegistrationApproved, req)
}

// Reject sends a pending registration back with an optional note.
func (s *RegistrationService) Reject(ctx context.Context, registrationID string, req ReviewRequest) (*models.Registration, error) {
	return s.review(ctx, registrationID, models.RegistrationRejected, req)
}

// ResetToDraft reopens a rejected registration and clears the review note.
func (s *RegistrationService) ResetToDraft(ctx context.Context, registrationID string) (*models.Registration, error) {
	reg, err := s.findRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(reg.Status, models.RegistrationDraft) {
		return nil, appErrors.InvalidStateTransition(string(reg.Status), string(models.RegistrationDraft))
	}
	change := changeFrom(reg, models.RegistrationDraft)
	change.Note = nil
	return s.transition(ctx, reg, change)
}

// Status summarizes the student's registration situation without creating a registration.
func (s *RegistrationService) Status(ctx context.Context, studentID string) (models.EnrollmentStatus, error) {
	student, err := s.findStudent(ctx, studentID)
	if err != nil {
		return models.EnrollmentStatus{}, err
	}
	snap, err := s.calendar.Snapshot(ctx)
	if err != nil {
		return models.EnrollmentStatus{}, err
	}
	allowance, err := s.performance.CeilingFor(ctx, student.ID)
	if err != nil {
		return models.EnrollmentStatus{}, err
	}

	period := snap.ActivePeriod()
	if period == nil {
		return EnrollmentStatusSummary(nil, nil, allowance.MaxCredits, snap), nil
	}
	reg, err := s.registrations.FindByStudentPeriod(ctx, student.ID, period.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EnrollmentStatusSummary(nil, nil, allowance.MaxCredits, snap), nil
		}
		return models.EnrollmentStatus{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	lines, err := s.registrations.ListLines(ctx, reg.ID)
	if err != nil {
		return models.EnrollmentStatus{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration lines")
	}
	return EnrollmentStatusSummary(reg, lines, allowance.MaxCredits, snap), nil
}

func (s *RegistrationService) review(ctx context.Context, registrationID string, to models.RegistrationStatus, req ReviewRequest) (*models.Registration, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	reg, err := s.findRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(reg.Status, to) {
		return nil, appErrors.InvalidStateTransition(string(reg.Status), string(to))
	}
	now := s.calendar.Now()
	reviewer := req.ReviewerID
	change := changeFrom(reg, to)
	change.Note = req.Note
	change.ReviewedBy = &reviewer
	change.ReviewedAt = &now
	return s.transition(ctx, reg, change)
}

func (s *RegistrationService) transition(ctx context.Context, reg *models.Registration, change models.StatusChange) (*models.Registration, error) {
	if err := s.registrations.UpdateStatus(ctx, reg.ID, change); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.TransactionConflict(err)
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration status")
	}
	s.metrics.RecordTransition(change.From, change.To)
	logger.WithContext(ctx, s.logger).Info("registration status changed",
		zap.String("registration_id", reg.ID),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)))
	return s.findRegistration(ctx, reg.ID)
}

// changeFrom starts a transition that keeps the current review fields.
func changeFrom(reg *models.Registration, to models.RegistrationStatus) models.StatusChange {
	return models.StatusChange{
		From:       reg.Status,
		To:         to,
		Note:       reg.Note,
		ReviewedBy: reg.ReviewedBy,
		ReviewedAt: reg.ReviewedAt,
	}
}

func (s *RegistrationService) detail(ctx context.Context, reg *models.Registration) (*models.RegistrationDetail, error) {
	lines, err := s.registrations.ListLines(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration lines")
	}
	if lines == nil {
		lines = []models.RegistrationLineDetail{}
	}
	return &models.RegistrationDetail{Registration: *reg, Lines: lines, TotalCredits: models.TotalCredits(lines)}, nil
}

func (s *RegistrationService) getOrCreate(ctx context.Context, studentID, periodID string) (*models.Registration, error) {
	reg, created, err := s.registrations.GetOrCreate(ctx, studentID, periodID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open registration")
	}
	if created {
		logger.WithContext(ctx, s.logger).Info("registration created",
			zap.String("student_id", studentID),
			zap.String("period_id", periodID),
			zap.String("registration_id", reg.ID))
	}
	return reg, nil
}

func (s *RegistrationService) activeRegistration(ctx context.Context, studentID string) (*models.Registration, error) {
	student, err := s.findStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	snap, err := s.calendar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	period, err := snap.RequireActivePeriod()
	if err != nil {
		return nil, err
	}
	reg, err := s.registrations.FindByStudentPeriod(ctx, student.ID, period.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("registration", student.ID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return reg, nil
}

func (s *RegistrationService) findRegistration(ctx context.Context, id string) (*models.Registration, error) {
	reg, err := s.registrations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("registration", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	return reg, nil
}

func (s *RegistrationService) findStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("student", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *RegistrationService) activeStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.findStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !student.Active() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}
	return student, nil
}

// prerequisiteOf loads the prerequisite course so violations can name it.
func (s *RegistrationService) prerequisiteOf(ctx context.Context, course models.Course) (*models.Course, error) {
	if course.PrerequisiteID == nil {
		return nil, nil
	}
	prerequisite, err := s.sections.FindCourse(ctx, *course.PrerequisiteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Course{ID: *course.PrerequisiteID, Name: *course.PrerequisiteID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite")
	}
	return prerequisite, nil
}
