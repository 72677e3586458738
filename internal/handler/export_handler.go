package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
	"github.com/noah-isme/siakad-krs/pkg/response"
)

type exportService interface {
	RegistrationCard(ctx context.Context, studentID string, format models.ExportFormat) (*models.ExportFile, error)
	AdviseeRiskReport(ctx context.Context, advisorID string, format models.ExportFormat) (*models.ExportFile, error)
}

// ExportHandler streams printable documents.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// RegistrationCard godoc
// @Summary Download the registration card of the active period
// @Tags Exports
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Student ID"
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} binary
// @Router /students/{id}/registration/export [get]
func (h *ExportHandler) RegistrationCard(c *gin.Context) {
	format, ok := exportFormat(c)
	if !ok {
		return
	}
	file, err := h.exports.RegistrationCard(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// AdviseeRiskReport godoc
// @Summary Download the advisee risk report
// @Tags Exports
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Advisor ID"
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} binary
// @Router /advisors/{id}/risk/export [get]
func (h *ExportHandler) AdviseeRiskReport(c *gin.Context) {
	format, ok := exportFormat(c)
	if !ok {
		return
	}
	file, err := h.exports.AdviseeRiskReport(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func exportFormat(c *gin.Context) (models.ExportFormat, bool) {
	format, err := models.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return "", false
	}
	return format, true
}
