package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-krs/internal/models"
	"github.com/noah-isme/siakad-krs/pkg/response"
)

type studentService interface {
	Performance(ctx context.Context, id string) (*models.PerformanceReport, error)
	Curriculum(ctx context.Context, id string) (*models.CurriculumOverview, error)
}

type riskService interface {
	Calculate(ctx context.Context, studentID string) (*models.RiskProfile, error)
}

// StudentHandler exposes a student's academic standing.
type StudentHandler struct {
	students studentService
	risk     riskService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService, risk riskService) *StudentHandler {
	return &StudentHandler{students: students, risk: risk}
}

// Performance godoc
// @Summary GPA, term history, grade distribution and credit ceiling
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/performance [get]
func (h *StudentHandler) Performance(c *gin.Context) {
	report, err := h.students.Performance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Curriculum godoc
// @Summary Curriculum version and progress of a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/curriculum [get]
func (h *StudentHandler) Curriculum(c *gin.Context) {
	overview, err := h.students.Curriculum(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview)
}

// Risk godoc
// @Summary Academic risk profile
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/risk [get]
func (h *StudentHandler) Risk(c *gin.Context) {
	profile, err := h.risk.Calculate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}
