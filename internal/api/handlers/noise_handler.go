package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calmwave/calmwave/internal/services"
	"github.com/calmwave/calmwave/internal/utils"
)

type NoiseHandler struct {
	svc services.NoisePresetService
}

func NewNoiseHandler(svc services.NoisePresetService) *NoiseHandler {
	return &NoiseHandler{svc: svc}
}

type NoisePresetRequest struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

func (h *NoiseHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req NoisePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "NoiseHandler.Create", "invalid request body", err))
		return
	}

	p, err := h.svc.Create(c.Request.Context(), userID, req.Name, req.Parameters)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

func (h *NoiseHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	out, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"presets": out})
}

func (h *NoiseHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), c.Param("preset_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *NoiseHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req NoisePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "NoiseHandler.Update", "invalid request body", err))
		return
	}

	p, err := h.svc.Update(c.Request.Context(), c.Param("preset_id"), userID, req.Name, req.Parameters)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *NoiseHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("preset_id"), userID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
