package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmwave/calmwave/internal/models"
	"github.com/calmwave/calmwave/internal/utils"
)

type fakeSessionService struct {
	sessions map[string]*models.Session
	artifact string
}

func (f *fakeSessionService) Get(ctx context.Context, sessionID, userID string, admin bool) (*models.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok || s.Status == models.StatusDeleted {
		return nil, utils.E(utils.CodeNotFound, "SessionService.Get", "session not found", nil)
	}
	if s.UserID != userID && !admin {
		return nil, utils.E(utils.CodeForbidden, "SessionService.Get", "forbidden", nil)
	}
	return s, nil
}

func (f *fakeSessionService) ListByOwner(ctx context.Context, userID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.Status != models.StatusDeleted {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionService) OpenArtifact(ctx context.Context, sessionID, userID string, admin bool) (io.ReadCloser, *models.Session, error) {
	s, err := f.Get(ctx, sessionID, userID, admin)
	if err != nil {
		return nil, nil, err
	}
	if s.Status != models.StatusProcessed {
		return nil, nil, utils.E(utils.CodeNotReady, "SessionService.OpenArtifact", "artifact not ready", nil)
	}
	return io.NopCloser(strings.NewReader(f.artifact)), s, nil
}

func (f *fakeSessionService) Delete(ctx context.Context, sessionID, userID string, admin bool) error {
	s, ok := f.sessions[sessionID]
	if !ok {
		return utils.E(utils.CodeNotFound, "SessionService.Delete", "session not found", nil)
	}
	if s.UserID != userID && !admin {
		return utils.E(utils.CodeForbidden, "SessionService.Delete", "forbidden", nil)
	}
	s.Status = models.StatusDeleted
	return nil
}

func newAudioRouter(svc *fakeSessionService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", "user")
	})

	h := NewAudioHandler(svc)
	r.GET("/sessions/:session_id", h.Get)
	r.GET("/sessions/:session_id/audio", h.Download)
	r.DELETE("/sessions/:session_id", h.Delete)
	return r
}

func TestDownloadNotReadyIs404(t *testing.T) {
	svc := &fakeSessionService{sessions: map[string]*models.Session{
		"s1": {SessionID: "s1", UserID: "alice", Status: models.StatusProcessing},
	}}
	r := newAudioRouter(svc, "alice")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/audio", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_READY")
}

func TestDownloadStreamsProcessedArtifact(t *testing.T) {
	svc := &fakeSessionService{
		sessions: map[string]*models.Session{
			"s1": {SessionID: "s1", UserID: "alice", Status: models.StatusProcessed, ArtifactPath: "x"},
		},
		artifact: "wav-bytes",
	}
	r := newAudioRouter(svc, "alice")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/audio", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "wav-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "processed_s1.wav")
}

func TestGetForbiddenForNonOwner(t *testing.T) {
	svc := &fakeSessionService{sessions: map[string]*models.Session{
		"s1": {SessionID: "s1", UserID: "alice", Status: models.StatusProcessed},
	}}
	r := newAudioRouter(svc, "mallory")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
}

func TestDeleteReturns204(t *testing.T) {
	svc := &fakeSessionService{sessions: map[string]*models.Session{
		"s1": {SessionID: "s1", UserID: "alice", Status: models.StatusProcessed},
	}}
	r := newAudioRouter(svc, "alice")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, models.StatusDeleted, svc.sessions["s1"].Status)
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAudioHandler(&fakeSessionService{sessions: map[string]*models.Session{}})
	r.GET("/sessions/:session_id", h.Get)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
