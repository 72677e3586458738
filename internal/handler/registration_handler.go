package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-krs/internal/models"
	"github.com/noah-isme/siakad-krs/internal/service"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
	"github.com/noah-isme/siakad-krs/pkg/response"
)

type registrationService interface {
	View(ctx context.Context, studentID string) (*service.RegistrationView, error)
	Status(ctx context.Context, studentID string) (models.EnrollmentStatus, error)
	Detail(ctx context.Context, registrationID string) (*models.RegistrationDetail, error)
	AddSection(ctx context.Context, studentID string, req service.AddSectionRequest) (*models.RegistrationLine, error)
	RemoveSection(ctx context.Context, studentID, sectionID string) error
	Submit(ctx context.Context, studentID string) (*models.Registration, error)
	Approve(ctx context.Context, registrationID string, req service.ReviewRequest) (*models.Registration, error)
	Reject(ctx context.Context, registrationID string, req service.ReviewRequest) (*models.Registration, error)
	ResetToDraft(ctx context.Context, registrationID string) (*models.Registration, error)
}

type suggestionService interface {
	Suggest(ctx context.Context, studentID string) (*models.Suggestion, error)
}

// RegistrationHandler exposes the course registration lifecycle.
type RegistrationHandler struct {
	registrations registrationService
	suggestions   suggestionService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService, suggestions suggestionService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, suggestions: suggestions}
}

// Current godoc
// @Summary Active registration of a student
// @Description Opens a draft registration in the active period when none exists.
// @Tags Registrations
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/registration [get]
func (h *RegistrationHandler) Current(c *gin.Context) {
	view, err := h.registrations.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Status godoc
// @Summary Registration status summary
// @Tags Registrations
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/registration/status [get]
func (h *RegistrationHandler) Status(c *gin.Context) {
	status, err := h.registrations.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// AddSection godoc
// @Summary Add a section to the active registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.AddSectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students/{id}/registration/lines [post]
func (h *RegistrationHandler) AddSection(c *gin.Context) {
	var req service.AddSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	line, err := h.registrations.AddSection(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, line)
}

// RemoveSection godoc
// @Summary Remove a section from the draft registration
// @Tags Registrations
// @Param id path string true "Student ID"
// @Param sectionId path string true "Section ID"
// @Success 204
// @Router /students/{id}/registration/lines/{sectionId} [delete]
func (h *RegistrationHandler) RemoveSection(c *gin.Context) {
	if err := h.registrations.RemoveSection(c.Request.Context(), c.Param("id"), c.Param("sectionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit the draft registration for advisor review
// @Tags Registrations
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/registration/submit [post]
func (h *RegistrationHandler) Submit(c *gin.Context) {
	reg, err := h.registrations.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg)
}

// Suggestions godoc
// @Summary Suggested sections for the active registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/registration/suggestions [get]
func (h *RegistrationHandler) Suggestions(c *gin.Context) {
	suggestion, err := h.suggestions.Suggest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, map[string]interface{}{
		"has_suggestions":         suggestion.HasSuggestions(),
		"total_suggested_credits": suggestion.TotalSuggestedCredits(),
		"can_add_more":            suggestion.CanAddMore(),
	})
}

// Detail godoc
// @Summary Registration detail
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Detail(c *gin.Context) {
	detail, err := h.registrations.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Approve godoc
// @Summary Approve a pending registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.ReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	h.review(c, h.registrations.Approve)
}

// Reject godoc
// @Summary Reject a pending registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.ReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	h.review(c, h.registrations.Reject)
}

// Reset godoc
// @Summary Reopen a rejected registration as draft
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/reset [post]
func (h *RegistrationHandler) Reset(c *gin.Context) {
	reg, err := h.registrations.ResetToDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg)
}

func (h *RegistrationHandler) review(c *gin.Context, decide func(context.Context, string, service.ReviewRequest) (*models.Registration, error)) {
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reg, err := decide(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg)
}
