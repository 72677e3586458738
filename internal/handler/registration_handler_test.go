package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siakad-krs/internal/models"
	"github.com/noah-isme/siakad-krs/internal/service"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *appErrors.Error       `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func newTestContext(method, target, body string, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Params = params
	return c, rec
}

type fakeRegistrationSrv struct {
	view       *service.RegistrationView
	status     models.EnrollmentStatus
	line       *models.RegistrationLine
	reg        *models.Registration
	err        error
	lastAdd    service.AddSectionRequest
	lastReview service.ReviewRequest
	removed    string
}

func (f *fakeRegistrationSrv) View(context.Context, string) (*service.RegistrationView, error) {
	return f.view, f.err
}

func (f *fakeRegistrationSrv) Status(context.Context, string) (models.EnrollmentStatus, error) {
	return f.status, f.err
}

func (f *fakeRegistrationSrv) Detail(context.Context, string) (*models.RegistrationDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.RegistrationDetail{Registration: *f.reg, Lines: []models.RegistrationLineDetail{}}, nil
}

func (f *fakeRegistrationSrv) AddSection(_ context.Context, _ string, req service.AddSectionRequest) (*models.RegistrationLine, error) {
	f.lastAdd = req
	return f.line, f.err
}

func (f *fakeRegistrationSrv) RemoveSection(_ context.Context, _ string, sectionID string) error {
	f.removed = sectionID
	return f.err
}

func (f *fakeRegistrationSrv) Submit(context.Context, string) (*models.Registration, error) {
	return f.reg, f.err
}

func (f *fakeRegistrationSrv) Approve(_ context.Context, _ string, req service.ReviewRequest) (*models.Registration, error) {
	f.lastReview = req
	return f.reg, f.err
}

func (f *fakeRegistrationSrv) Reject(_ context.Context, _ string, req service.ReviewRequest) (*models.Registration, error) {
	f.lastReview = req
	return f.reg, f.err
}

func (f *fakeRegistrationSrv) ResetToDraft(context.Context, string) (*models.Registration, error) {
	return f.reg, f.err
}

type fakeSuggestionSrv struct {
	suggestion *models.Suggestion
	err        error
}

func (f *fakeSuggestionSrv) Suggest(context.Context, string) (*models.Suggestion, error) {
	return f.suggestion, f.err
}

func TestRegistrationHandlerStatus(t *testing.T) {
	srv := &fakeRegistrationSrv{status: models.EnrollmentStatus{
		RegistrationStatus: models.RegistrationDraft,
		CurrentCredits:     3,
		MaxCredits:         24,
		RemainingCredits:   21,
		CanAddMore:         true,
	}}
	handler := NewRegistrationHandler(srv, &fakeSuggestionSrv{})

	c, rec := newTestContext(http.MethodGet, "/students/stu-1/registration/status", "", gin.Param{Key: "id", Value: "stu-1"})
	handler.Status(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "DRAFT", envelope.Data["registration_status"])
	assert.EqualValues(t, 21, envelope.Data["remaining_credits"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRegistrationHandlerAddSectionInvalidPayload(t *testing.T) {
	handler := NewRegistrationHandler(&fakeRegistrationSrv{}, &fakeSuggestionSrv{})

	c, rec := newTestContext(http.MethodPost, "/students/stu-1/registration/lines", "{", gin.Param{Key: "id", Value: "stu-1"})
	handler.AddSection(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}

func TestRegistrationHandlerAddSectionCreated(t *testing.T) {
	srv := &fakeRegistrationSrv{line: &models.RegistrationLine{ID: "line-1", SectionID: "sec-1", CourseID: "c1"}}
	handler := NewRegistrationHandler(srv, &fakeSuggestionSrv{})

	c, rec := newTestContext(http.MethodPost, "/students/stu-1/registration/lines", `{"section_id":"sec-1"}`, gin.Param{Key: "id", Value: "stu-1"})
	handler.AddSection(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "sec-1", srv.lastAdd.SectionID)
	assert.Equal(t, "line-1", decodeEnvelope(t, rec).Data["id"])
}

func TestRegistrationHandlerAddSectionViolation(t *testing.T) {
	srv := &fakeRegistrationSrv{err: appErrors.SksLimitExceeded(22, 24, 3)}
	handler := NewRegistrationHandler(srv, &fakeSuggestionSrv{})

	c, rec := newTestContext(http.MethodPost, "/students/stu-1/registration/lines", `{"section_id":"sec-1"}`, gin.Param{Key: "id", Value: "stu-1"})
	handler.AddSection(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "SKS_LIMIT_EXCEEDED", envelope.Error.Code)
	assert.EqualValues(t, 24, envelope.Error.Details["max"])
}

func TestRegistrationHandlerRemoveSection(t *testing.T) {
	srv := &fakeRegistrationSrv{}
	handler := NewRegistrationHandler(srv, &fakeSuggestionSrv{})

	c, rec := newTestContext(http.MethodDelete, "/students/stu-1/registration/lines/sec-9", "",
		gin.Param{Key: "id", Value: "stu-1"}, gin.Param{Key: "sectionId", Value: "sec-9"})
	handler.RemoveSection(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "sec-9", srv.removed)
	assert.Empty(t, rec.Body.String())
}

func TestRegistrationHandlerSubmitLocked(t *testing.T) {
	srv := &fakeRegistrationSrv{err: appErrors.InvalidStateTransition("APPROVED", "PENDING")}
	handler := NewRegistrationHandler(srv, &fakeSuggestionSrv{})

	c, rec := newTestContext(http.MethodPost, "/students/stu-1/registration/submit", "", gin.Param{Key: "id", Value: "stu-1"})
	handler.Submit(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegistrationHandlerReviewRequiresReviewer(t *testing.T) {
	handler := NewRegistrationHandler(&fakeRegistrationSrv{}, &fakeSuggestionSrv{})

	c, rec := newTestContext(http.MethodPost, "/registrations/reg-1/approve", "", gin.Param{Key: "id", Value: "reg-1"})
	handler.Approve(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistrationHandlerReject(t *testing.T) {
	note := "kurangi beban"
	srv := &fakeRegistrationSrv{reg: &models.Registration{ID: "reg-1", Status: models.RegistrationRejected, Note: &note}}
	handler := NewRegistrationHandler(srv, &fakeSuggestionSrv{})

	c, rec := newTestContext(http.MethodPost, "/registrations/reg-1/reject", `{"reviewer_id":"adv-1","note":"kurangi beban"}`,
		gin.Param{Key: "id", Value: "reg-1"})
	handler.Reject(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "adv-1", srv.lastReview.ReviewerID)
	require.NotNil(t, srv.lastReview.Note)
	assert.Equal(t, "kurangi beban", *srv.lastReview.Note)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "REJECTED", envelope.Data["status"])
	assert.Equal(t, "kurangi beban", envelope.Data["note"])
}

func TestRegistrationHandlerDetailNotFound(t *testing.T) {
	srv := &fakeRegistrationSrv{err: appErrors.NotFound("registration", "reg-x")}
	handler := NewRegistrationHandler(srv, &fakeSuggestionSrv{})

	c, rec := newTestContext(http.MethodGet, "/registrations/reg-x", "", gin.Param{Key: "id", Value: "reg-x"})
	handler.Detail(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistrationHandlerSuggestionsMeta(t *testing.T) {
	suggestions := &fakeSuggestionSrv{suggestion: &models.Suggestion{
		StudentID:        "stu-1",
		MaxCredits:       24,
		CurrentCredits:   18,
		RemainingCredits: 6,
		Priority: []models.SuggestedSection{
			{SectionID: "sec-1", CourseID: "c1", Credits: 3, Reason: models.ReasonRetake},
		},
	}}
	handler := NewRegistrationHandler(&fakeRegistrationSrv{}, suggestions)

	c, rec := newTestContext(http.MethodGet, "/students/stu-1/registration/suggestions", "", gin.Param{Key: "id", Value: "stu-1"})
	handler.Suggestions(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["has_suggestions"])
	assert.EqualValues(t, 3, envelope.Meta["total_suggested_credits"])
	assert.Equal(t, true, envelope.Meta["can_add_more"])
}
