package messaging

import (
	channelrepo "opsdesk_backend/internal/channels/repository"
	apphttp "opsdesk_backend/internal/http"
	"opsdesk_backend/internal/messaging/repository"
	"opsdesk_backend/internal/messaging/webhook"
	"opsdesk_backend/platform/config"
	"opsdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the messaging bounded context: the Message/Conversation store
// plus the public inbound webhooks that feed it.
type Module struct {
	repo    *repository.Repository
	webhook *webhook.Handler
}

// NewModule creates the messaging module.
func NewModule(pool *pgxpool.Pool, accounts *channelrepo.Repository, cfg config.TwilioConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)

	return &Module{
		repo:    repo,
		webhook: webhook.New(accounts, repo, cfg.GetTwilioFromNumber(), log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "messaging" }

// RegisterRoutes mounts the public webhook routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.webhook.RegisterRoutes(ctx.Public)
}

// Repository exposes the message/conversation store for the automation
// engine, which records outbound attempts and correlates email threads.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}
