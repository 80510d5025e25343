package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storyboard-server/internal/batch"
	"storyboard-server/internal/handler"
	"storyboard-server/internal/ingest"
	"storyboard-server/internal/middleware"
	"storyboard-server/internal/mocks"
	"storyboard-server/internal/models"
	"storyboard-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret     = "handler-test-secret"
	testUploadSize = 64
)

var ada = models.CurrentUser{ID: "user-ada"}

type testEnv struct {
	router *gin.Engine
	svc    *mocks.MockStoryboardService
	ocr    *mocks.MockOCRClient
	hub    *ingest.ProgressHub
}

// newTestEnv wires the handler with mocked collaborators. A zero rateLimit disables the limiter.
func newTestEnv(t *testing.T, rateLimit uint) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	verifier, err := middleware.NewJWTVerifier(testSecret, log)
	require.NoError(t, err)

	env := &testEnv{
		router: gin.New(),
		svc:    new(mocks.MockStoryboardService),
		ocr:    new(mocks.MockOCRClient),
		hub:    ingest.NewProgressHub(),
	}
	h := handler.NewStoryboardHandler(env.svc, ingest.NewService(env.ocr, testUploadSize, log), env.hub, verifier, testUploadSize, log)

	var limiter gin.HandlerFunc
	if rateLimit > 0 {
		limiter = handler.NewRateLimiter(nil, time.Minute, rateLimit, log)
	}
	h.RegisterRoutes(env.router, limiter)
	return env
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, userID, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return e.do(t, ada.ID, method, path, r, "application/json")
}

func (e *testEnv) upload(t *testing.T, filename string, content []byte, uploadID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if uploadID != "" {
		require.NoError(t, mw.WriteField("upload_id", uploadID))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return e.do(t, ada.ID, http.MethodPost, "/api/v1/ingest/file", &buf, mw.FormDataContentType())
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestRequestsWithoutValidTokenAreRejected(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, "", http.MethodGet, "/api/v1/storyboards", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeTokenInvalid, decodeError(t, w).Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{UserID: ada.ID}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/storyboards", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env.svc.AssertNotCalled(t, "ListProjects", mock.Anything, mock.Anything)
}

func TestCreateStoryboard(t *testing.T) {
	env := newTestEnv(t, 0)
	env.svc.On("CreateStoryboard", mock.Anything, ada, mock.MatchedBy(func(req service.CreateStoryboardRequest) bool {
		return req.Script == "A quiet street at dawn." && req.AspectRatio == models.AspectTall && req.Style == "noir"
	})).Return(&models.Project{ID: "p1", OwnerID: ada.ID}, nil).Once()

	w := env.doJSON(t, http.MethodPost, "/api/v1/storyboards",
		`{"script":"A quiet street at dawn.","aspect_ratio":"tall","style":"noir"}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "p1", got.ID)
	env.svc.AssertExpectations(t)
}

func TestCreateStoryboardRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.doJSON(t, http.MethodPost, "/api/v1/storyboards", `{"script":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrCodeBadRequest, decodeError(t, w).Code)
	env.svc.AssertNotCalled(t, "CreateStoryboard", mock.Anything, mock.Anything, mock.Anything)
}

func TestListAndDeleteStoryboards(t *testing.T) {
	env := newTestEnv(t, 0)
	env.svc.On("ListProjects", mock.Anything, ada).
		Return([]models.ProjectSummary{{ID: "p1", Title: "Dawn", ShotCount: 6}}, nil).Once()
	env.svc.On("DeleteProject", mock.Anything, ada, "p1").Return(nil).Once()

	w := env.doJSON(t, http.MethodGet, "/api/v1/storyboards", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Storyboards []models.ProjectSummary `json:"storyboards"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Storyboards, 1)
	assert.Equal(t, 6, list.Storyboards[0].ShotCount)

	w = env.doJSON(t, http.MethodDelete, "/api/v1/storyboards/p1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	env.svc.AssertExpectations(t)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	upstream := fmt.Errorf("%w: image backend said: quota exhausted", models.ErrUpstream)

	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not found", fmt.Errorf("%w: p1", models.ErrNotFound), http.StatusNotFound, models.ErrCodeNotFound, "Storyboard not found"},
		{"shot not found", fmt.Errorf("%w: 9", models.ErrShotNotFound), http.StatusNotFound, models.ErrCodeShotNotFound, ""},
		{"batch running", models.ErrGenerationInProgress, http.StatusConflict, models.ErrCodeGenerationActive, ""},
		{"orphan frame", models.ErrOrphanFrame, http.StatusConflict, models.ErrCodeOrphanFrame, ""},
		{"plan size", models.ErrInvalidPlanSize, http.StatusUnprocessableEntity, models.ErrCodeInvalidPlanSize, ""},
		{"plan shape", models.ErrInvalidPlan, http.StatusUnprocessableEntity, models.ErrCodeInvalidPlan, ""},
		{"empty script", models.ErrEmptyScript, http.StatusBadRequest, models.ErrCodeEmptyScript, ""},
		{"invalid input", fmt.Errorf("%w: bad aspect", models.ErrInvalidInput), http.StatusBadRequest, models.ErrCodeValidation, ""},
		{"upstream", upstream, http.StatusBadGateway, models.ErrCodeUpstreamFailure, upstream.Error()},
		{"deadline", context.DeadlineExceeded, http.StatusBadGateway, models.ErrCodeUpstreamFailure, ""},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, models.ErrCodeInternal, "An unexpected internal error occurred"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, 0)
			env.svc.On("GetProject", mock.Anything, ada, "p1").Return(nil, tc.err).Once()

			w := env.doJSON(t, http.MethodGet, "/api/v1/storyboards/p1", "")

			assert.Equal(t, tc.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tc.code, resp.Code)
			if tc.message != "" {
				assert.Equal(t, tc.message, resp.Message)
			}
		})
	}
}

func TestUpdateShotRejectsNumberField(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.doJSON(t, http.MethodPatch, "/api/v1/storyboards/p1/shots/2", `{"number":3,"description":"moved"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "number")
	env.svc.AssertNotCalled(t, "UpdateShot", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateShotPassesPartialPatch(t *testing.T) {
	env := newTestEnv(t, 0)
	env.svc.On("UpdateShot", mock.Anything, ada, "p1", 2, mock.MatchedBy(func(p models.ShotPatch) bool {
		return p.Description != nil && *p.Description == "rain on glass" && p.CameraAngle == nil && p.Characters == nil
	})).Return(&models.Project{ID: "p1"}, nil).Once()

	w := env.doJSON(t, http.MethodPatch, "/api/v1/storyboards/p1/shots/2", `{"description":"rain on glass"}`)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env.svc.AssertExpectations(t)
}

func TestUpdateScriptRejectsUnknownField(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.doJSON(t, http.MethodPatch, "/api/v1/storyboards/p1/script", `{"shots":[]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.svc.AssertNotCalled(t, "UpdateScript", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInvalidShotNumber(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, n := range []string{"zero", "0", "-2"} {
		w := env.doJSON(t, http.MethodDelete, "/api/v1/storyboards/p1/shots/"+n, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, n)
	}
	env.svc.AssertNotCalled(t, "DeleteShot", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEditShotRequiresInstruction(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.doJSON(t, http.MethodPost, "/api/v1/storyboards/p1/shots/1/edit", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.svc.On("EditShotWithPrompt", mock.Anything, ada, "p1", 1, "make it night").
		Return(&models.Project{ID: "p1"}, nil).Once()
	w = env.doJSON(t, http.MethodPost, "/api/v1/storyboards/p1/shots/1/edit", `{"instruction":"make it night"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	env.svc.AssertExpectations(t)
}

func TestRenderAllStartsInBackground(t *testing.T) {
	env := newTestEnv(t, 0)
	env.svc.On("StartGenerateAllFrames", mock.Anything, ada, "p1").Return(nil).Once()

	w := env.doJSON(t, http.MethodPost, "/api/v1/storyboards/p1/frames/render-all", "")

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"started","project_id":"p1"}`, w.Body.String())
	env.svc.AssertNotCalled(t, "GenerateAllFrames", mock.Anything, mock.Anything, mock.Anything)
}

func TestRenderAllWaitReturnsReport(t *testing.T) {
	env := newTestEnv(t, 0)
	report := &batch.Report{ProjectID: "p1", Rendered: []int{1, 3}, Errored: []int{2}, Skipped: []int{}}
	env.svc.On("GenerateAllFrames", mock.Anything, ada, "p1").Return(&models.Project{ID: "p1"}, report, nil).Once()

	w := env.doJSON(t, http.MethodPost, "/api/v1/storyboards/p1/frames/render-all?wait=true", "")

	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Project models.Project `json:"project"`
		Report  batch.Report   `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "p1", got.Project.ID)
	assert.Equal(t, []int{1, 3}, got.Report.Rendered)
	assert.Equal(t, []int{2}, got.Report.Errored)
	env.svc.AssertNotCalled(t, "StartGenerateAllFrames", mock.Anything, mock.Anything, mock.Anything)
}

func TestRenderAllConflict(t *testing.T) {
	env := newTestEnv(t, 0)
	env.svc.On("StartGenerateAllFrames", mock.Anything, ada, "p1").
		Return(fmt.Errorf("%w: project p1", models.ErrGenerationInProgress)).Once()

	w := env.doJSON(t, http.MethodPost, "/api/v1/storyboards/p1/frames/render-all", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.ErrCodeGenerationActive, decodeError(t, w).Code)
}

func TestRenderFrameUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, 0)
	env.svc.On("RegenerateFrame", mock.Anything, ada, "p1", 4).
		Return(nil, fmt.Errorf("%w: backend returned 503", models.ErrUpstream)).Once()

	w := env.doJSON(t, http.MethodPost, "/api/v1/storyboards/p1/frames/4/render", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "backend returned 503")
}

func TestIngestText(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.doJSON(t, http.MethodPost, "/api/v1/ingest/text", `{"text":"  Night falls.\nRain.  "}`)

	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Script    string `json:"script"`
		WordCount int    `json:"word_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "  Night falls.\nRain.  ", got.Script)
	assert.Equal(t, 3, got.WordCount)
}

func TestIngestTextFile(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.upload(t, "scene.txt", []byte("INT. KITCHEN - DAY"), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got struct {
		Script   string `json:"script"`
		Filename string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "INT. KITCHEN - DAY", got.Script)
	assert.Equal(t, "scene.txt", got.Filename)
	env.ocr.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestFileRejections(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.upload(t, "scene.docx", []byte("PK"), "")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, models.ErrCodeUnsupportedType, decodeError(t, w).Code)

	w = env.upload(t, "long.txt", bytes.Repeat([]byte("a"), testUploadSize+1), "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, models.ErrCodeFileTooLarge, decodeError(t, w).Code)

	w = env.upload(t, "", nil, "up-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.ocr.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestPDFReportsProgress(t *testing.T) {
	env := newTestEnv(t, 0)
	events, cancel := env.hub.Subscribe(ada.ID + "/up-1")
	defer cancel()

	env.ocr.On("Extract", mock.Anything, "scene.pdf", []byte("%PDF-1.4"), mock.AnythingOfType("ingest.ProgressFunc")).
		Run(func(args mock.Arguments) {
			args.Get(3).(ingest.ProgressFunc)(ingest.Progress{Stage: "ocr", Percent: 50})
		}).
		Return("EXT. HARBOUR - NIGHT", nil).Once()

	w := env.upload(t, "scene.pdf", []byte("%PDF-1.4"), "up-1")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "EXT. HARBOUR - NIGHT")

	first := <-events
	assert.Equal(t, "ocr", first.Stage)
	assert.Equal(t, 50.0, first.Percent)
	last := <-events
	assert.True(t, last.Done)
	assert.Equal(t, "complete", last.Stage)
	env.ocr.AssertExpectations(t)
}

func TestIngestPDFFailureFinishesProgress(t *testing.T) {
	env := newTestEnv(t, 0)
	events, cancel := env.hub.Subscribe(ada.ID + "/up-2")
	defer cancel()

	env.ocr.On("Extract", mock.Anything, "scan.pdf", mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: ocr service said: unreadable page", models.ErrUpstream)).Once()

	w := env.upload(t, "scan.pdf", []byte("%PDF-1.4"), "up-2")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	last := <-events
	assert.True(t, last.Done)
	assert.Equal(t, "failed", last.Stage)
	assert.Contains(t, last.Error, "unreadable page")
}

func TestRateLimiterIsPerUser(t *testing.T) {
	env := newTestEnv(t, 1)
	env.svc.On("CreateStoryboard", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Project{ID: "p1"}, nil).Twice()

	body := `{"script":"A quiet street."}`
	w := env.doJSON(t, http.MethodPost, "/api/v1/storyboards", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.doJSON(t, http.MethodPost, "/api/v1/storyboards", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeRateLimited, decodeError(t, w).Code)

	w = env.do(t, "user-bo", http.MethodPost, "/api/v1/storyboards", strings.NewReader(body), "application/json")
	assert.Equal(t, http.StatusCreated, w.Code)

	// reads are not limited
	env.svc.On("GetProject", mock.Anything, ada, "p1").Return(&models.Project{ID: "p1"}, nil).Once()
	w = env.doJSON(t, http.MethodGet, "/api/v1/storyboards/p1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	env.svc.AssertExpectations(t)
}

func TestProgressWebsocketStreamsUntilDone(t *testing.T) {
	env := newTestEnv(t, 0)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ingest/progress/up-1?token=" + signToken(t, ada.ID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	key := ada.ID + "/up-1"
	require.Eventually(t, func() bool { return env.hub.Subscribers(key) == 1 }, 2*time.Second, 10*time.Millisecond)

	env.hub.Publish(key, ingest.Progress{Stage: "ocr", Percent: 40, Elapsed: 1500 * time.Millisecond})
	env.hub.Finish(key, nil)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "ocr", msg["stage"])
	assert.Equal(t, 40.0, msg["percent"])
	assert.Equal(t, 1500.0, msg["elapsed_ms"])

	msg = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "complete", msg["stage"])
	assert.Equal(t, true, msg["done"])

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read result: %v", err)
	assert.Eventually(t, func() bool { return env.hub.Subscribers(key) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestProgressWebsocketClosesAfterFloodedFinish(t *testing.T) {
	env := newTestEnv(t, 0)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ingest/progress/up-2?token=" + signToken(t, ada.ID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	key := ada.ID + "/up-2"
	require.Eventually(t, func() bool { return env.hub.Subscribers(key) == 1 }, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 200; i++ {
		env.hub.Publish(key, ingest.Progress{Stage: "ocr", Percent: float64(i) / 2})
	}
	env.hub.Finish(key, errors.New("engine crashed"))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var last map[string]any
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read result: %v", err)
			break
		}
		last = msg
	}
	require.NotNil(t, last)
	assert.Equal(t, true, last["done"])
	assert.Equal(t, "failed", last["stage"])
	assert.Equal(t, "engine crashed", last["error"])
}

func TestProgressWebsocketIsScopedToUser(t *testing.T) {
	env := newTestEnv(t, 0)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ingest/progress/up-1?token=" + signToken(t, "user-bo")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return env.hub.Subscribers("user-bo/up-1") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, env.hub.Subscribers(ada.ID+"/up-1"))
}

func TestProgressWebsocketRequiresToken(t *testing.T) {
	env := newTestEnv(t, 0)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ingest/progress/up-1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
