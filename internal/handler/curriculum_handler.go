package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
	"github.com/noah-isme/siakad-krs/pkg/response"
)

type curriculumService interface {
	Resolve(ctx context.Context, program string, enrollmentYear int) (*models.CurriculumVersion, error)
	AvailableVersions(ctx context.Context, program string) []int
	Invalidate(ctx context.Context, program string) error
	InvalidateAll(ctx context.Context) error
}

// InvalidateCurriculumRequest selects the program whose cached curricula are dropped. Empty drops all.
type InvalidateCurriculumRequest struct {
	Program string `json:"program"`
}

// CurriculumHandler exposes curriculum catalogue lookups.
type CurriculumHandler struct {
	curricula curriculumService
}

// NewCurriculumHandler constructs CurriculumHandler.
func NewCurriculumHandler(curricula curriculumService) *CurriculumHandler {
	return &CurriculumHandler{curricula: curricula}
}

// Courses godoc
// @Summary Courses of the curriculum that applies to an enrollment year
// @Tags Curricula
// @Produce json
// @Param program path string true "Program key"
// @Param year path int true "Enrollment year"
// @Param code query string false "Find by course code"
// @Param name query string false "Find by course name"
// @Param type query string false "required or elective"
// @Success 200 {object} response.Envelope
// @Router /curricula/{program}/{year}/courses [get]
func (h *CurriculumHandler) Courses(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a number"))
		return
	}
	version, err := h.curricula.Resolve(c.Request.Context(), c.Param("program"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"program":            version.Program,
		"curriculum_year":    version.Year,
		"available_versions": h.curricula.AvailableVersions(c.Request.Context(), version.Program),
	}

	if code := c.Query("code"); code != "" {
		course, ok := version.FindCourseByCode(code)
		if !ok {
			response.Error(c, appErrors.NotFound("course", code))
			return
		}
		response.JSON(c, http.StatusOK, course, meta)
		return
	}
	if name := c.Query("name"); name != "" {
		course, ok := version.FindCourseByName(name)
		if !ok {
			response.Error(c, appErrors.NotFound("course", name))
			return
		}
		response.JSON(c, http.StatusOK, course, meta)
		return
	}

	var courses []models.CurriculumCourse
	switch strings.ToLower(c.Query("type")) {
	case "":
		courses = version.Courses()
	case "required":
		courses = version.RequiredCourses()
	case "elective":
		courses = version.ElectiveCourses()
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "type must be required or elective"))
		return
	}
	if courses == nil {
		courses = []models.CurriculumCourse{}
	}
	meta["total_credits"] = version.TotalCredits()
	response.JSON(c, http.StatusOK, courses, meta)
}

// Invalidate godoc
// @Summary Drop cached curricula
// @Tags Curricula
// @Accept json
// @Param payload body InvalidateCurriculumRequest false "Program to invalidate"
// @Success 204
// @Router /curricula/cache/invalidate [post]
func (h *CurriculumHandler) Invalidate(c *gin.Context) {
	var req InvalidateCurriculumRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	var err error
	if program := strings.TrimSpace(req.Program); program != "" {
		err = h.curricula.Invalidate(c.Request.Context(), program)
	} else {
		err = h.curricula.InvalidateAll(c.Request.Context())
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
