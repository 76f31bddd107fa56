// Package events defines the domain event vocabulary shared by the
// automation engine and its callers. Events are persisted append-only;
// the log is the audit trail for every workspace-visible occurrence.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of domain occurrence an event records.
// Automation rules are keyed on this value.
type Type string

const (
	TypeBookingCreated   Type = "BOOKING_CREATED"
	TypeBookingConfirmed Type = "BOOKING_CONFIRMED"
	TypeBookingCancelled Type = "BOOKING_CANCELLED"
	TypeLeadCreated      Type = "LEAD_CREATED"
	TypeFormSubmitted    Type = "FORM_SUBMITTED"
	TypeInventoryLow     Type = "INVENTORY_LOW"
)

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	switch t {
	case TypeBookingCreated, TypeBookingConfirmed, TypeBookingCancelled,
		TypeLeadCreated, TypeFormSubmitted, TypeInventoryLow:
		return true
	}
	return false
}

// EntityType values used for thread correlation. Other entity types pass
// through the engine untouched.
const (
	EntityBooking = "Booking"
	EntityLead    = "Lead"
)

// Event is one immutable row in the workspace event log.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	WorkspaceID uuid.UUID      `json:"workspaceId"`
	Type        Type           `json:"type"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"createdAt"`
}
