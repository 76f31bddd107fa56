// Package repository persists messages and conversations.
package repository

import (
	"context"
	"errors"
	"time"

	"opsdesk_backend/internal/channels"
	"opsdesk_backend/internal/messaging/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrCustomerNotFound     = errors.New("customer not found")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OutboundMessageParams describes one dispatch attempt to record.
type OutboundMessageParams struct {
	ConversationID *uuid.UUID
	Channel        channels.Channel
	Status         domain.Status
	FromAddress    string
	ToAddress      string
	Subject        string
	Body           string
	ProviderRef    string
	SentAt         *time.Time
}

// RecordOutbound inserts an OUTBOUND message row. Called for both successful
// and failed sends so the audit trail covers every attempt.
func (r *Repository) RecordOutbound(ctx context.Context, params OutboundMessageParams) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, channel, direction, status, from_address, to_address, subject, body, provider_ref, sent_at)
		VALUES ($1, $2, $3, 'OUTBOUND', $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
	`, id, params.ConversationID, params.Channel, params.Status,
		params.FromAddress, params.ToAddress, params.Subject, params.Body,
		params.ProviderRef, params.SentAt)
	if err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// RecordInbound inserts an INBOUND/RECEIVED message row and bumps the
// conversation's last-message timestamp.
func (r *Repository) RecordInbound(ctx context.Context, conversationID uuid.UUID, channel channels.Channel, fromAddress, body string) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, channel, direction, status, from_address, body, received_at)
		VALUES ($1, $2, $3, 'INBOUND', 'RECEIVED', $4, $5, $6)
	`, id, conversationID, channel, fromAddress, body, now)
	if err != nil {
		return uuid.Nil, err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE conversations SET last_message_at = $2 WHERE id = $1
	`, conversationID, now)
	if err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// FindConversationByEntity looks up the conversation owned by a booking or
// lead within a workspace.
func (r *Repository) FindConversationByEntity(ctx context.Context, workspaceID uuid.UUID, entityType string, entityID uuid.UUID) (*domain.Conversation, error) {
	var column string
	switch entityType {
	case "Booking":
		column = "booking_id"
	case "Lead":
		column = "lead_id"
	default:
		return nil, ErrConversationNotFound
	}

	row := r.pool.QueryRow(ctx, `
		SELECT id, workspace_id, customer_id, booking_id, lead_id, subject, COALESCE(email_thread_id, ''), last_message_at
		FROM conversations
		WHERE workspace_id = $1 AND `+column+` = $2
	`, workspaceID, entityID)

	return scanConversation(row)
}

// SetEmailThreadID persists the provider-side thread id on a conversation.
func (r *Repository) SetEmailThreadID(ctx context.Context, conversationID uuid.UUID, threadID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET email_thread_id = $2 WHERE id = $1
	`, conversationID, threadID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return nil
}

// FindCustomerByPhone matches a customer in the workspace by any of the
// given phone variants.
func (r *Repository) FindCustomerByPhone(ctx context.Context, workspaceID uuid.UUID, phoneVariants []string) (*domain.Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, workspace_id, name, phone
		FROM customers
		WHERE workspace_id = $1 AND phone = ANY($2)
		LIMIT 1
	`, workspaceID, phoneVariants)

	var customer domain.Customer
	err := row.Scan(&customer.ID, &customer.WorkspaceID, &customer.Name, &customer.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

// FindOrCreateCustomerConversation returns the customer's most recent
// conversation, creating one when none exists.
func (r *Repository) FindOrCreateCustomerConversation(ctx context.Context, workspaceID, customerID uuid.UUID, subject string) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, workspace_id, customer_id, booking_id, lead_id, subject, COALESCE(email_thread_id, ''), last_message_at
		FROM conversations
		WHERE workspace_id = $1 AND customer_id = $2
		ORDER BY last_message_at DESC
		LIMIT 1
	`, workspaceID, customerID)

	conversation, err := scanConversation(row)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, err
	}

	created := &domain.Conversation{
		ID:            uuid.New(),
		WorkspaceID:   workspaceID,
		CustomerID:    customerID,
		Subject:       subject,
		LastMessageAt: time.Now(),
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO conversations (id, workspace_id, customer_id, subject, last_message_at)
		VALUES ($1, $2, $3, $4, $5)
	`, created.ID, created.WorkspaceID, created.CustomerID, created.Subject, created.LastMessageAt)
	if err != nil {
		return nil, err
	}

	return created, nil
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.WorkspaceID,
		&conversation.CustomerID,
		&conversation.BookingID,
		&conversation.LeadID,
		&conversation.Subject,
		&conversation.EmailThreadID,
		&conversation.LastMessageAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}
