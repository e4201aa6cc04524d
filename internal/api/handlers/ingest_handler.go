package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/calmwave/calmwave/internal/services"
	"github.com/calmwave/calmwave/internal/utils"
)

// maxChunkBytes bounds one multipart audio part.
const maxChunkBytes = 25 << 20

type IngestHandler struct {
	svc services.IngestService
}

func NewIngestHandler(svc services.IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type UploadResponse struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	ChunkCount   int64  `json:"chunk_count"`
	ArtifactPath string `json:"artifact_path,omitempty"`
}

// Upload accepts one multipart chunk. Form fields: audio (file, required),
// session_id (optional; omitted on the first chunk of a new session),
// sequence_number (required), is_final (optional, default false).
func (h *IngestHandler) Upload(c *gin.Context) {
	const op = "IngestHandler.Upload"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio file is required", err))
		return
	}
	if fh.Size > maxChunkBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio chunk too large", nil))
		return
	}

	seqStr := c.PostForm("sequence_number")
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "sequence_number must be an integer", err))
		return
	}

	isFinal := false
	if v := strings.TrimSpace(c.PostForm("is_final")); v != "" {
		isFinal, err = strconv.ParseBool(v)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "is_final must be a boolean", err))
			return
		}
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxChunkBytes))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}

	sess, err := h.svc.Accept(c.Request.Context(), userID, c.PostForm("session_id"), seq, isFinal, data)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		SessionID:    sess.SessionID,
		Status:       sess.Status,
		ChunkCount:   sess.ChunkCount,
		ArtifactPath: sess.ArtifactPath,
	})
}
