package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
	"github.com/noah-isme/siakad-krs/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type riskOverviewer interface {
	RiskOverview(ctx context.Context, advisorID string) (*models.AdviseeRiskOverview, error)
}

var registrationCardHeaders = []string{"Code", "Course", "Section", "Credits", "Semester", "Schedule"}

var adviseeRiskHeaders = []string{"NIM", "Name", "Score", "Level", "Flags", "Pending", "Needs Attention"}

// ExportService renders registration cards and advisee risk reports.
type ExportService struct {
	students      studentReader
	registrations registrationReader
	calendar      *CalendarService
	advisors      riskOverviewer
	csv           csvRenderer
	pdf           pdfRenderer
	logger        *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the default exporters.
func NewExportService(students studentReader, registrations registrationReader, calendar *CalendarService, advisors riskOverviewer, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		students:      students,
		registrations: registrations,
		calendar:      calendar,
		advisors:      advisors,
		csv:           csv,
		pdf:           pdf,
		logger:        logger,
	}
}

// RegistrationCard renders the student's registration in the active period.
func (s *ExportService) RegistrationCard(ctx context.Context, studentID string, format models.ExportFormat) (*models.ExportFile, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("student", studentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
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
	lines, err := s.registrations.ListLines(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration lines")
	}

	dataset := RegistrationCardDataset(*student, *period, *reg, lines)
	name := fmt.Sprintf("krs_%s_%s", sanitizeFilename(student.NIM), sanitizeFilename(period.Label()))
	return s.render(dataset, name, format, snap.Now())
}

// AdviseeRiskReport renders the risk overview of an advisor's students.
func (s *ExportService) AdviseeRiskReport(ctx context.Context, advisorID string, format models.ExportFormat) (*models.ExportFile, error) {
	overview, err := s.advisors.RiskOverview(ctx, advisorID)
	if err != nil {
		return nil, err
	}
	dataset := AdviseeRiskDataset(overview)
	return s.render(dataset, "advisee_risk_"+sanitizeFilename(advisorID), format, s.calendar.Now())
}

func (s *ExportService) render(dataset export.Dataset, name string, format models.ExportFormat, now time.Time) (*models.ExportFile, error) {
	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = export.ContentTypeCSV
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset)
		contentType = export.ContentTypePDF
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	filename := fmt.Sprintf("%s_%s.%s", name, now.UTC().Format("20060102_150405"), format)
	s.logger.Debug("export rendered", zap.String("file", filename), zap.Int("bytes", len(payload)))
	return &models.ExportFile{Filename: filename, ContentType: contentType, Data: payload}, nil
}

// RegistrationCardDataset lays out a registration as a printable card.
func RegistrationCardDataset(student models.Student, period models.AcademicPeriod, reg models.Registration, lines []models.RegistrationLineDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(lines))
	for _, line := range lines {
		slots := make([]string, len(line.Section.TimeSlots))
		for i, slot := range line.Section.TimeSlots {
			slots[i] = slot.Label()
		}
		rows = append(rows, map[string]string{
			"Code":     line.Section.Course.Code,
			"Course":   line.Section.Course.Name,
			"Section":  line.Section.Name,
			"Credits":  strconv.Itoa(line.Section.Course.Credits),
			"Semester": strconv.Itoa(line.Section.Course.Semester),
			"Schedule": strings.Join(slots, "; "),
		})
	}
	summary := []string{
		fmt.Sprintf("Student: %s - %s", student.NIM, student.FullName),
		fmt.Sprintf("Program: %s", student.ProgramName),
		fmt.Sprintf("Period: %s", period.Label()),
		fmt.Sprintf("Status: %s", reg.Status),
		fmt.Sprintf("Total credits: %d", models.TotalCredits(lines)),
	}
	if reg.Note != nil && *reg.Note != "" {
		summary = append(summary, fmt.Sprintf("Advisor note: %s", *reg.Note))
	}
	return export.Dataset{
		Title:   "Course Registration Card",
		Summary: summary,
		Headers: registrationCardHeaders,
		Rows:    rows,
	}
}

// AdviseeRiskDataset lists advisees in overview order.
func AdviseeRiskDataset(overview *models.AdviseeRiskOverview) export.Dataset {
	rows := make([]map[string]string, 0, len(overview.Advisees))
	for _, row := range overview.Advisees {
		flags := make([]string, len(row.Risk.Flags))
		for i, flag := range row.Risk.Flags {
			flags[i] = string(flag)
		}
		rows = append(rows, map[string]string{
			"NIM":             row.Student.NIM,
			"Name":            row.Student.FullName,
			"Score":           strconv.Itoa(row.Risk.Score),
			"Level":           row.Risk.Level.Label(),
			"Flags":           strings.Join(flags, ", "),
			"Pending":         yesNo(row.PendingRegistration != nil),
			"Needs Attention": yesNo(row.NeedsAttention),
		})
	}
	stats := overview.Stats
	return export.Dataset{
		Title: "Advisee Risk Report",
		Summary: []string{
			fmt.Sprintf("Advisor: %s", overview.AdvisorID),
			fmt.Sprintf("Advisees: %d, pending: %d, high risk: %d, needs attention: %d",
				stats.Total, stats.Pending, stats.HighRisk, stats.NeedsAttention),
		},
		Headers: adviseeRiskHeaders,
		Rows:    rows,
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
