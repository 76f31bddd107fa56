// Package service implements the automation engine: the single LogEvent
// entry point that persists an event, runs the workspace's matching rules,
// and dispatches the resulting notifications.
package service

import (
	"context"
	"errors"
	"time"

	"opsdesk_backend/internal/automation/domain"
	"opsdesk_backend/internal/channels"
	"opsdesk_backend/internal/events"
	messagingdomain "opsdesk_backend/internal/messaging/domain"
	messagingrepo "opsdesk_backend/internal/messaging/repository"
	"opsdesk_backend/platform/apperr"
	"opsdesk_backend/platform/logger"

	"github.com/google/uuid"
)

// EventStore is the append-only event log.
type EventStore interface {
	Append(ctx context.Context, params domain.LogEventParams) (events.Event, error)
}

// RuleStore loads and manages automation rules.
type RuleStore interface {
	ListActive(ctx context.Context, workspaceID uuid.UUID, trigger events.Type) ([]domain.Rule, error)
	List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Rule, error)
	Create(ctx context.Context, rule domain.Rule) error
	CountByWorkspace(ctx context.Context, workspaceID uuid.UUID) (int, error)
}

// MessageSender dispatches one outbound message. Satisfied by the channel
// router; failures come back inside the result, never as panics.
type MessageSender interface {
	Send(ctx context.Context, input channels.SendInput) channels.SendResult
}

// MessageWriter records dispatch attempts.
type MessageWriter interface {
	RecordOutbound(ctx context.Context, params messagingrepo.OutboundMessageParams) (uuid.UUID, error)
}

// ConversationStore supports best-effort thread correlation.
type ConversationStore interface {
	FindConversationByEntity(ctx context.Context, workspaceID uuid.UUID, entityType string, entityID uuid.UUID) (*messagingdomain.Conversation, error)
	SetEmailThreadID(ctx context.Context, conversationID uuid.UUID, threadID string) error
}

// Engine is the automation service.
type Engine struct {
	events        EventStore
	rules         RuleStore
	sender        MessageSender
	messages      MessageWriter
	conversations ConversationStore
	log           *logger.Logger
}

// NewEngine constructs the automation engine.
func NewEngine(eventStore EventStore, rules RuleStore, sender MessageSender, messages MessageWriter, conversations ConversationStore, log *logger.Logger) *Engine {
	return &Engine{
		events:        eventStore,
		rules:         rules,
		sender:        sender,
		messages:      messages,
		conversations: conversations,
		log:           log,
	}
}

// LogEvent persists the event and synchronously runs matching rules. It is
// the seam every booking/lead/form/inventory workflow calls after a state
// change. Only the event-log write can fail the call; automation failures
// downstream are logged and swallowed so the primary business action is
// never held hostage by notification delivery.
func (e *Engine) LogEvent(ctx context.Context, params domain.LogEventParams) (events.Event, error) {
	if !params.Type.Valid() {
		return events.Event{}, apperr.Validation("unknown event type " + string(params.Type))
	}
	if params.Payload == nil {
		params.Payload = map[string]any{}
	}

	event, err := e.events.Append(ctx, params)
	if err != nil {
		return events.Event{}, err
	}

	e.runRules(ctx, event)

	return event, nil
}

// runRules executes every active rule matching the event. Actions within a
// rule run strictly in order, one at a time; a failed action never stops
// the ones after it. No retries here: a failed send is terminal for this
// trigger occurrence.
func (e *Engine) runRules(ctx context.Context, event events.Event) {
	rules, err := e.rules.ListActive(ctx, event.WorkspaceID, event.Type)
	if err != nil {
		e.log.Error("automation rule lookup failed",
			"workspace_id", event.WorkspaceID.String(),
			"trigger", string(event.Type),
			"error", err.Error(),
		)
		return
	}

	e.log.Debug("automation trigger",
		"workspace_id", event.WorkspaceID.String(),
		"trigger", string(event.Type),
		"rules", len(rules),
	)

	for _, rule := range rules {
		for _, action := range rule.Actions {
			e.runAction(ctx, event, rule, action)
		}
	}
}

func (e *Engine) runAction(ctx context.Context, event events.Event, rule domain.Rule, action domain.Action) {
	var channel channels.Channel
	switch action.Type {
	case domain.ActionSendEmail:
		channel = channels.ChannelEmail
	case domain.ActionSendSMS:
		channel = channels.ChannelSMS
	default:
		// Unknown action types are skipped, not failed.
		e.log.Warn("skipping unknown automation action type",
			"rule_id", rule.ID.String(),
			"action_type", string(action.Type),
		)
		return
	}

	to := ResolveTemplate(action.To, event.Payload)
	if to == "" {
		// The event carried no recipient for this action (e.g. no phone on
		// file). A skip, not an error.
		e.log.Debug("skipping action with empty recipient",
			"rule_id", rule.ID.String(),
			"action_type", string(action.Type),
		)
		return
	}

	input := channels.SendInput{
		WorkspaceID: event.WorkspaceID,
		Channel:     channel,
		To:          to,
		Subject:     ResolveTemplate(action.Subject, event.Payload),
		Body:        ResolveTemplate(action.Body, event.Payload),
	}

	result := e.sender.Send(ctx, input)

	e.recordAttempt(ctx, event, input, result)

	if result.ThreadID != "" && channel == channels.ChannelEmail {
		e.correlateThread(ctx, event, result.ThreadID)
	}
}

// recordAttempt writes the Message audit row for a dispatch attempt. The
// write is independent of the send; its failure is logged, not propagated.
func (e *Engine) recordAttempt(ctx context.Context, event events.Event, input channels.SendInput, result channels.SendResult) {
	status := messagingdomain.StatusFailed
	var sentAt *time.Time
	if result.Success {
		status = messagingdomain.StatusSent
		now := time.Now()
		sentAt = &now
	}

	var conversationID *uuid.UUID
	if conversation := e.findConversation(ctx, event); conversation != nil {
		conversationID = &conversation.ID
	}

	_, err := e.messages.RecordOutbound(ctx, messagingrepo.OutboundMessageParams{
		ConversationID: conversationID,
		Channel:        input.Channel,
		Status:         status,
		FromAddress:    result.From,
		ToAddress:      input.To,
		Subject:        input.Subject,
		Body:           input.Body,
		ProviderRef:    result.ProviderRef,
		SentAt:         sentAt,
	})
	if err != nil {
		e.log.Error("failed to record outbound message",
			"workspace_id", event.WorkspaceID.String(),
			"channel", string(input.Channel),
			"to", input.To,
			"error", err.Error(),
		)
	}

	if !result.Success {
		e.log.Warn("automation send failed",
			"workspace_id", event.WorkspaceID.String(),
			"channel", string(input.Channel),
			"to", input.To,
			"error", result.Error,
		)
	}
}

// correlateThread attaches the provider-assigned email thread id to the
// conversation owned by the triggering entity, so future replies group
// correctly. Strictly best-effort: any failure is logged and swallowed.
func (e *Engine) correlateThread(ctx context.Context, event events.Event, threadID string) {
	conversation := e.findConversation(ctx, event)
	if conversation == nil {
		return
	}

	if err := e.conversations.SetEmailThreadID(ctx, conversation.ID, threadID); err != nil {
		e.log.Warn("failed to persist email thread id",
			"workspace_id", event.WorkspaceID.String(),
			"conversation_id", conversation.ID.String(),
			"error", err.Error(),
		)
		return
	}

	e.log.Debug("email thread correlated",
		"conversation_id", conversation.ID.String(),
		"thread_id", threadID,
	)
}

func (e *Engine) findConversation(ctx context.Context, event events.Event) *messagingdomain.Conversation {
	if event.EntityType != events.EntityBooking && event.EntityType != events.EntityLead {
		return nil
	}

	entityID, err := uuid.Parse(event.EntityID)
	if err != nil {
		return nil
	}

	conversation, err := e.conversations.FindConversationByEntity(ctx, event.WorkspaceID, event.EntityType, entityID)
	if err != nil {
		if !errors.Is(err, messagingrepo.ErrConversationNotFound) {
			e.log.Warn("conversation lookup failed",
				"workspace_id", event.WorkspaceID.String(),
				"entity_type", event.EntityType,
				"entity_id", event.EntityID,
				"error", err.Error(),
			)
		}
		return nil
	}

	return conversation
}

// ListRules returns all rules for a workspace.
func (e *Engine) ListRules(ctx context.Context, workspaceID uuid.UUID) ([]domain.Rule, error) {
	return e.rules.List(ctx, workspaceID)
}

// CreateRule validates and persists a new rule.
func (e *Engine) CreateRule(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	if !rule.Trigger.Valid() {
		return domain.Rule{}, apperr.Validation("unknown trigger " + string(rule.Trigger))
	}
	if len(rule.Actions) == 0 {
		return domain.Rule{}, apperr.Validation("rule needs at least one action")
	}

	rule.ID = uuid.New()
	if err := e.rules.Create(ctx, rule); err != nil {
		return domain.Rule{}, err
	}

	return rule, nil
}

// BootstrapDefaultRules seeds the stock rules into a workspace that has
// none yet. Idempotent: a workspace with any rules is left untouched.
func (e *Engine) BootstrapDefaultRules(ctx context.Context, workspaceID uuid.UUID) ([]domain.Rule, error) {
	count, err := e.rules.CountByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return []domain.Rule{}, nil
	}

	defaults := domain.DefaultRules(workspaceID)
	for _, rule := range defaults {
		if err := e.rules.Create(ctx, rule); err != nil {
			return nil, err
		}
	}

	return defaults, nil
}
