package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-krs/internal/models"
	"github.com/noah-isme/siakad-krs/pkg/response"
)

type advisorService interface {
	RiskOverview(ctx context.Context, advisorID string) (*models.AdviseeRiskOverview, error)
	AdviseeRisk(ctx context.Context, advisorID, studentID string) (*models.RiskProfile, error)
}

// AdvisorHandler exposes the advisor risk dashboard.
type AdvisorHandler struct {
	advisors advisorService
}

// NewAdvisorHandler constructs AdvisorHandler.
func NewAdvisorHandler(advisors advisorService) *AdvisorHandler {
	return &AdvisorHandler{advisors: advisors}
}

// RiskOverview godoc
// @Summary Risk overview of an advisor's active students
// @Description Advisees are ordered by risk score, highest first.
// @Tags Advisors
// @Produce json
// @Param id path string true "Advisor ID"
// @Success 200 {object} response.Envelope
// @Router /advisors/{id}/risk [get]
func (h *AdvisorHandler) RiskOverview(c *gin.Context) {
	overview, err := h.advisors.RiskOverview(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview.Advisees, map[string]interface{}{
		"advisor_id": overview.AdvisorID,
		"stats":      overview.Stats,
		"by_level":   overview.ByLevel,
	})
}

// AdviseeRisk godoc
// @Summary Risk profile of one advisee
// @Tags Advisors
// @Produce json
// @Param id path string true "Advisor ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /advisors/{id}/students/{studentId}/risk [get]
func (h *AdvisorHandler) AdviseeRisk(c *gin.Context) {
	profile, err := h.advisors.AdviseeRisk(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}
