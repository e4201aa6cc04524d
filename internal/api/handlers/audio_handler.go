package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calmwave/calmwave/internal/services"
)

type AudioHandler struct {
	svc services.SessionService
}

func NewAudioHandler(svc services.SessionService) *AudioHandler {
	return &AudioHandler{svc: svc}
}

func (h *AudioHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessions, err := h.svc.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *AudioHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sess, err := h.svc.Get(c.Request.Context(), c.Param("session_id"), userID, isAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess)
}

// Download streams the processed artifact. 404 until processing finished.
func (h *AudioHandler) Download(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	rc, sess, err := h.svc.OpenArtifact(c.Request.Context(), c.Param("session_id"), userID, isAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", `attachment; filename="processed_`+sess.SessionID+`.wav"`)
	c.DataFromReader(http.StatusOK, -1, "audio/wav", rc, nil)
}

func (h *AudioHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("session_id"), userID, isAdmin(c)); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
