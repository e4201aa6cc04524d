package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calmwave/calmwave/internal/services"
	"github.com/calmwave/calmwave/internal/utils"
)

type SupportHandler struct {
	svc services.SupportTicketService
}

func NewSupportHandler(svc services.SupportTicketService) *SupportHandler {
	return &SupportHandler{svc: svc}
}

type OpenTicketRequest struct {
	Subject string   `json:"subject" binding:"required"`
	Body    string   `json:"body"`
	Tags    []string `json:"tags"`
}

func (h *SupportHandler) Open(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req OpenTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SupportHandler.Open", "invalid request body", err))
		return
	}

	t, err := h.svc.Open(c.Request.Context(), userID, req.Subject, req.Body, req.Tags)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

func (h *SupportHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	out, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": out})
}

func (h *SupportHandler) ListAll(c *gin.Context) {
	out, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": out})
}

func (h *SupportHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	t, err := h.svc.Get(c.Request.Context(), c.Param("ticket_id"), userID, isAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

func (h *SupportHandler) Close(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	t, err := h.svc.Close(c.Request.Context(), c.Param("ticket_id"), userID, isAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}
