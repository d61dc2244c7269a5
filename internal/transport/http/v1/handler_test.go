package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/dailymission/internal/adapter/blob"
	"github.com/xiaot623/dailymission/internal/adapter/generator"
	"github.com/xiaot623/dailymission/internal/assignment"
	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/feedback"
	"github.com/xiaot623/dailymission/internal/flow"
	"github.com/xiaot623/dailymission/internal/logger"
	"github.com/xiaot623/dailymission/internal/policy"
	"github.com/xiaot623/dailymission/internal/repository"
	"github.com/xiaot623/dailymission/internal/safety"
	"github.com/xiaot623/dailymission/internal/service"
	"github.com/xiaot623/dailymission/tests/helpers"
)

func newTestHandler(t *testing.T, db *repository.SQLiteStore) *Handler {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	rules, err := safety.DefaultRules()
	require.NoError(t, err)
	classifier := safety.NewClassifier(rules)
	gen, err := generator.NewMockGenerator()
	require.NoError(t, err)
	photos, err := blob.NewLocalStore(t.TempDir(), blob.LocalRoute)
	require.NoError(t, err)
	guard, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	engine := assignment.NewEngine(db, assignment.DefaultPolicy(), log)
	deps := &flow.Deps{
		Assigner: engine,
		Store:    db,
		Uploader: photos,
		Feedback: feedback.NewOrchestrator(classifier, gen, db, log),
		Guard:    guard,
		Log:      log,
	}
	svc := service.New(db, engine, classifier, deps, nil, log)
	return NewHandler(svc, log)
}

func userContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, path, uid string) echo.Context {
	c := e.NewContext(req, rec)
	c.SetPath(path)
	c.SetParamNames("user_id")
	c.SetParamValues(uid)
	return c
}

func call(t *testing.T, e *echo.Echo, fn echo.HandlerFunc, method, path, uid string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/", bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	if err := fn(userContext(e, req, rec, path, uid)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func decodeFlow(t *testing.T, rec *httptest.ResponseRecorder) domain.FlowResponse {
	t.Helper()
	var resp domain.FlowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func multipartCapture(t *testing.T, text string, photo []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if text != "" {
		require.NoError(t, w.WriteField("text", text))
	}
	if photo != nil {
		fw, err := w.CreateFormFile("photo", "photo.jpg")
		require.NoError(t, err)
		_, err = fw.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, helpers.NewTestSQLiteStore(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Health(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestTodayAssignment(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, helpers.NewSeededSQLiteStore(t))
	path := "/v1/users/:user_id/assignments/today"

	rec := call(t, e, h.GetTodayAssignment, http.MethodGet, path, "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.AssignmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "assigned", resp.Status)
	require.NotNil(t, resp.Assignment)
	assert.Equal(t, domain.MissionTypeObserve, resp.Assignment.Mission.Type)

	again := call(t, e, h.GetTodayAssignment, http.MethodGet, path, "u1", nil, "")
	var second domain.AssignmentResponse
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &second))
	assert.Equal(t, resp.Assignment.ID, second.Assignment.ID)

	bad := call(t, e, h.GetTodayAssignment, http.MethodGet, path, " ", nil, "")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestTodayAssignmentEmpty(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, helpers.NewTestSQLiteStore(t))

	rec := call(t, e, h.GetTodayAssignment, http.MethodGet, "/v1/users/:user_id/assignments/today", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.AssignmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "empty", resp.Status)
	assert.Nil(t, resp.Assignment)
	assert.NotEmpty(t, resp.Date)
}

func TestClassify(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, helpers.NewTestSQLiteStore(t))

	req := httptest.NewRequest(http.MethodPost, "/v1/safety/classify", bytes.NewBufferString(`{"text":"죽고 싶 다"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Classify(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res domain.CrisisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Detected)
	assert.Equal(t, domain.CrisisLevelCritical, res.Level)
	assert.Equal(t, domain.CrisisActionShowCrisisScreen, res.Action)
	assert.Equal(t, "죽고싶", res.MatchedKeyword)
	assert.NotEmpty(t, res.Helplines)
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNoSession, http.StatusNotFound, "no_session"},
		{&domain.TransitionError{From: domain.FlowStepIdle, Event: domain.FlowEventAcknowledge}, http.StatusConflict, "invalid_transition"},
		{&domain.CaptureValidationError{Reason: "empty"}, http.StatusUnprocessableEntity, "invalid_capture"},
		{&domain.UploadError{Err: assert.AnError}, http.StatusBadGateway, "upload_failed"},
		{&domain.FeedbackError{Err: assert.AnError}, http.StatusBadGateway, "feedback_failed"},
		{&domain.PersistError{What: "recording", Err: assert.AnError}, http.StatusInternalServerError, "persist_failed"},
		{&domain.AssignmentError{Op: "get", Err: assert.AnError}, http.StatusServiceUnavailable, "assignment_unavailable"},
		{flow.ErrQuestionUnavailable, http.StatusServiceUnavailable, "question_unavailable"},
		{assert.AnError, http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, body := apiError(tt.err)
		assert.Equal(t, tt.status, status, tt.code)
		assert.Equal(t, tt.code, body.Code)
	}
}
