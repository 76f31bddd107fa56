// Package domain holds the automation model: rules matched on domain
// events and the template-resolved actions they dispatch.
package domain

import (
	"time"

	"opsdesk_backend/internal/events"

	"github.com/google/uuid"
)

// ActionType discriminates the action variants within a rule.
type ActionType string

const (
	ActionSendEmail ActionType = "send_email"
	ActionSendSMS   ActionType = "send_sms"
)

// Action is one notification instruction within a rule. To, Subject and Body
// are template strings resolved against the triggering event's payload.
// Unknown action types are ignored at execution time, not rejected.
type Action struct {
	Type    ActionType `json:"type"`
	To      string     `json:"to"`
	Subject string     `json:"subject,omitempty"`
	Body    string     `json:"body"`
}

// Rule maps a trigger event type to an ordered list of actions for one
// workspace. Action slice order is execution order; actions are independent
// of one another (no rollback across actions).
type Rule struct {
	ID          uuid.UUID   `json:"id"`
	WorkspaceID uuid.UUID   `json:"workspaceId"`
	Name        string      `json:"name"`
	Trigger     events.Type `json:"trigger"`
	IsActive    bool        `json:"isActive"`
	Actions     []Action    `json:"actions"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// LogEventParams is the input to the engine's single entry point.
type LogEventParams struct {
	WorkspaceID uuid.UUID
	Type        events.Type
	EntityType  string
	EntityID    string
	Payload     map[string]any
}

// DefaultRules returns the stock rules seeded into a workspace that has
// none yet, mirroring what onboarding promises new tenants.
func DefaultRules(workspaceID uuid.UUID) []Rule {
	return []Rule{
		{
			ID:          uuid.New(),
			WorkspaceID: workspaceID,
			Name:        "Welcome message on new lead",
			Trigger:     events.TypeLeadCreated,
			IsActive:    true,
			Actions: []Action{
				{
					Type:    ActionSendEmail,
					To:      "{{customerEmail}}",
					Subject: "Thank you for contacting us",
					Body:    "Hi {{customerName}}, thank you for reaching out. We will get back to you shortly.\n\nBook an appointment directly here: {{bookingUrl}}",
				},
				{
					Type: ActionSendSMS,
					To:   "{{customerPhone}}",
					Body: "Hi {{customerName}}, thank you for contacting us. Book an appointment here: {{bookingUrl}}",
				},
			},
		},
		{
			ID:          uuid.New(),
			WorkspaceID: workspaceID,
			Name:        "Booking confirmation",
			Trigger:     events.TypeBookingCreated,
			IsActive:    true,
			Actions: []Action{
				{
					Type:    ActionSendEmail,
					To:      "{{customerEmail}}",
					Subject: "Booking Confirmation",
					Body:    "Hi {{customerName}}, your booking for {{bookingType}} on {{startAt}} has been received. We will confirm it shortly.\n\n{{formUrl}}",
				},
			},
		},
		{
			ID:          uuid.New(),
			WorkspaceID: workspaceID,
			Name:        "Booking confirmed notification",
			Trigger:     events.TypeBookingConfirmed,
			IsActive:    true,
			Actions: []Action{
				{
					Type:    ActionSendEmail,
					To:      "{{customerEmail}}",
					Subject: "Your Booking is Confirmed",
					Body:    "Hi {{customerName}}, great news! Your booking for {{bookingType}} on {{startAt}} has been confirmed.\n\nAddress: {{address}}\n\nWe look forward to seeing you!",
				},
			},
		},
		{
			ID:          uuid.New(),
			WorkspaceID: workspaceID,
			Name:        "Booking cancelled notification",
			Trigger:     events.TypeBookingCancelled,
			IsActive:    true,
			Actions: []Action{
				{
					Type:    ActionSendEmail,
					To:      "{{customerEmail}}",
					Subject: "Booking Cancelled",
					Body:    "Hi {{customerName}}, your booking for {{bookingType}} on {{startAt}} has been cancelled. If this was a mistake, please contact us to rebook.",
				},
			},
		},
	}
}
