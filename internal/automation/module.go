package automation

import (
	"context"

	"opsdesk_backend/internal/automation/domain"
	"opsdesk_backend/internal/automation/handler"
	"opsdesk_backend/internal/automation/repository"
	"opsdesk_backend/internal/automation/service"
	"opsdesk_backend/internal/events"
	apphttp "opsdesk_backend/internal/http"
	"opsdesk_backend/platform/logger"
	"opsdesk_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the automation bounded context module implementing http.Module.
type Module struct {
	engine  *service.Engine
	handler *handler.Handler
}

// NewModule creates and initializes the automation module. The sender is
// the channel router; message/conversation persistence comes from the
// messaging module to keep a single owner for those tables.
func NewModule(pool *pgxpool.Pool, sender service.MessageSender, messages service.MessageWriter, conversations service.ConversationStore, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	engine := service.NewEngine(repo, repo, sender, messages, conversations, log)

	return &Module{
		engine:  engine,
		handler: handler.New(engine, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "automation" }

// RegisterRoutes mounts the automation routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/workspaces/:workspaceId"))
}

// LogEvent exposes the engine's entry point for in-process callers that
// emit events without going through HTTP.
func (m *Module) LogEvent(ctx context.Context, params domain.LogEventParams) (events.Event, error) {
	return m.engine.LogEvent(ctx, params)
}
