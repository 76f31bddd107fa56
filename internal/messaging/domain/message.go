// Package domain holds the shared Message/Conversation data model.
// Outbound rows are written by the automation engine for every dispatch
// attempt; inbound rows come from the public webhook handlers.
package domain

import (
	"time"

	"opsdesk_backend/internal/channels"

	"github.com/google/uuid"
)

// Direction of a message relative to the workspace.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Status of a message.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusSent      Status = "SENT"
	StatusFailed    Status = "FAILED"
	StatusDelivered Status = "DELIVERED"
	StatusReceived  Status = "RECEIVED"
)

// Message is one inbound or outbound item in a conversation.
type Message struct {
	ID             uuid.UUID        `json:"id"`
	ConversationID *uuid.UUID       `json:"conversationId,omitempty"`
	Channel        channels.Channel `json:"channel"`
	Direction      Direction        `json:"direction"`
	Status         Status           `json:"status"`
	FromAddress    string           `json:"fromAddress"`
	ToAddress      string           `json:"toAddress"`
	Subject        string           `json:"subject,omitempty"`
	Body           string           `json:"body"`
	ProviderRef    string           `json:"providerRef,omitempty"`
	SentAt         *time.Time       `json:"sentAt,omitempty"`
	ReceivedAt     *time.Time       `json:"receivedAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Conversation groups messages exchanged with one customer. EmailThreadID
// is the provider-side thread identifier used to group future replies.
type Conversation struct {
	ID            uuid.UUID  `json:"id"`
	WorkspaceID   uuid.UUID  `json:"workspaceId"`
	CustomerID    uuid.UUID  `json:"customerId"`
	BookingID     *uuid.UUID `json:"bookingId,omitempty"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	Subject       string     `json:"subject"`
	EmailThreadID string     `json:"emailThreadId,omitempty"`
	LastMessageAt time.Time  `json:"lastMessageAt"`
}

// Customer is the minimal read model the inbound webhook needs to attribute
// a reply to someone the workspace already knows.
type Customer struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	Phone       string
}
