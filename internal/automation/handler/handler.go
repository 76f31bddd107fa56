package handler

import (
	"net/http"

	"opsdesk_backend/internal/automation/domain"
	"opsdesk_backend/internal/automation/service"
	"opsdesk_backend/internal/automation/transport"
	"opsdesk_backend/internal/events"
	"opsdesk_backend/platform/httpkit"
	"opsdesk_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgInvalidWorkspace = "invalid workspace id"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	engine *service.Engine
	val    *validator.Validator
}

func New(engine *service.Engine, val *validator.Validator) *Handler {
	return &Handler{engine: engine, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/events", h.LogEvent)
	rg.GET("/automation/rules", h.ListRules)
	rg.POST("/automation/rules", h.CreateRule)
	rg.POST("/automation/bootstrap", h.Bootstrap)
}

// LogEvent is the trigger seam the rest of the application calls after a
// state change. Automation failures never surface here; only a failed
// event-log write produces an error response.
func (h *Handler) LogEvent(c *gin.Context) {
	workspaceID, ok := h.workspaceID(c)
	if !ok {
		return
	}

	var req transport.LogEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	event, err := h.engine.LogEvent(c.Request.Context(), domain.LogEventParams{
		WorkspaceID: workspaceID,
		Type:        events.Type(req.Type),
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Payload:     req.Payload,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, event)
}

func (h *Handler) ListRules(c *gin.Context) {
	workspaceID, ok := h.workspaceID(c)
	if !ok {
		return
	}

	rules, err := h.engine.ListRules(c.Request.Context(), workspaceID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, rules)
}

func (h *Handler) CreateRule(c *gin.Context) {
	workspaceID, ok := h.workspaceID(c)
	if !ok {
		return
	}

	var req transport.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	actions := make([]domain.Action, 0, len(req.Actions))
	for _, action := range req.Actions {
		actions = append(actions, domain.Action{
			Type:    domain.ActionType(action.Type),
			To:      action.To,
			Subject: action.Subject,
			Body:    action.Body,
		})
	}

	rule, err := h.engine.CreateRule(c.Request.Context(), domain.Rule{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Trigger:     events.Type(req.Trigger),
		IsActive:    isActive,
		Actions:     actions,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, rule)
}

// Bootstrap seeds the stock rules into a workspace that has none yet.
func (h *Handler) Bootstrap(c *gin.Context) {
	workspaceID, ok := h.workspaceID(c)
	if !ok {
		return
	}

	rules, err := h.engine.BootstrapDefaultRules(c.Request.Context(), workspaceID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{"created": len(rules), "rules": rules})
}

func (h *Handler) workspaceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidWorkspace, nil)
		return uuid.Nil, false
	}
	return id, true
}
