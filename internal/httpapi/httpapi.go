// Package httpapi is a thin Gin HTTP transport over internal/api, mapping
// 1:1 onto the abstract session lifecycle operations. Grounded on the
// teacher's internal/handlers/session.go handler shape.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vasicdigital/debateforge/internal/api"
	"github.com/vasicdigital/debateforge/internal/debate"
)

// Handler wires internal/api operations onto Gin routes.
type Handler struct {
	api *api.API
	log *logrus.Logger
}

// NewHandler constructs a Handler over svc.
func NewHandler(svc *api.API, log *logrus.Logger) *Handler {
	return &Handler{api: svc, log: log}
}

// Register mounts every session-lifecycle route onto r.
func (h *Handler) Register(r gin.IRouter) {
	sessions := r.Group("/sessions")
	sessions.POST("", h.createSession)
	sessions.POST("/:id/start", h.startSession)
	sessions.POST("/:id/pause", h.pauseSession)
	sessions.POST("/:id/resume", h.resumeSession)
	sessions.POST("/:id/cancel", h.cancelSession)
	sessions.GET("/:id", h.getSession)
	sessions.GET("/:id/transcript", h.getTranscript)
	sessions.GET("/:id/analytics/:kind", h.getAnalytics)
	sessions.PUT("/:id/rotation", h.setRotationStrategy)
}

type createSessionRequest struct {
	Topic            string            `json:"topic" binding:"required"`
	Reference        string            `json:"reference"`
	RoleCount        int               `json:"role_count" binding:"required"`
	RotationStrategy string            `json:"rotation_strategy"`
	MaxRounds        int               `json:"max_rounds"`
	TotalBudgetMS    int64             `json:"total_budget_ms"`
	ModelAssignment  map[string]string `json:"model_assignment" binding:"required"`
}

type createSessionResponse struct {
	SessionID  string            `json:"session_id"`
	Assignment map[string]string `json:"assignment"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignment := make(map[debate.Role]string, len(req.ModelAssignment))
	for role, model := range req.ModelAssignment {
		assignment[debate.Role(role)] = model
	}

	var budget time.Duration
	if req.TotalBudgetMS > 0 {
		budget = time.Duration(req.TotalBudgetMS) * time.Millisecond
	}

	id, initial, err := h.api.CreateSession(api.CreateSessionRequest{
		Topic:            req.Topic,
		Reference:        []byte(req.Reference),
		RoleCount:        req.RoleCount,
		RotationStrategy: debate.RotationStrategy(req.RotationStrategy),
		MaxRounds:        req.MaxRounds,
		TotalBudget:      budget,
		ModelAssignment:  assignment,
	})
	if err != nil {
		writeAPIError(c, err)
		return
	}

	out := make(map[string]string, len(initial))
	for role, model := range initial {
		out[string(role)] = model
	}
	c.JSON(http.StatusCreated, createSessionResponse{SessionID: id, Assignment: out})
}

func (h *Handler) startSession(c *gin.Context) {
	if err := h.api.StartSession(c.Param("id")); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (h *Handler) pauseSession(c *gin.Context) {
	if err := h.api.PauseSession(c.Param("id")); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (h *Handler) resumeSession(c *gin.Context) {
	if err := h.api.ResumeSession(c.Param("id")); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (h *Handler) cancelSession(c *gin.Context) {
	if err := h.api.CancelSession(c.Param("id")); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (h *Handler) getSession(c *gin.Context) {
	snap, err := h.api.GetSession(c.Param("id"))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) getTranscript(c *gin.Context) {
	from := 0
	if v := c.Query("from"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an integer"})
			return
		}
		from = parsed
	}
	turns, err := h.api.GetTranscript(c.Param("id"), from)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": turns})
}

func (h *Handler) getAnalytics(c *gin.Context) {
	// kind is accepted for forward-compatibility with a narrower future
	// per-section endpoint; today the full report is always returned.
	report, err := h.api.GetAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type setRotationRequest struct {
	Strategy string `json:"strategy" binding:"required"`
}

func (h *Handler) setRotationStrategy(c *gin.Context) {
	var req setRotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.api.SetRotationStrategy(c.Param("id"), debate.RotationStrategy(req.Strategy)); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func writeAPIError(c *gin.Context, err error) {
	apiErr, ok := err.(*debate.APIError)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusBadRequest
	switch apiErr.Kind {
	case debate.ErrNotFound:
		status = http.StatusNotFound
	case debate.ErrAlreadyStarted, debate.ErrInvalidState, debate.ErrNotReady:
		status = http.StatusConflict
	case debate.ErrInvalidConfig:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": apiErr.Message, "kind": apiErr.Kind})
}
