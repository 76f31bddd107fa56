package transport

// Request DTOs
type LogEventRequest struct {
	Type       string         `json:"type" validate:"required,min=1,max=60"`
	EntityType string         `json:"entityType" validate:"required,min=1,max=60"`
	EntityID   string         `json:"entityId" validate:"required,min=1,max=60"`
	Payload    map[string]any `json:"payload,omitempty" validate:"-"`
}

type ActionRequest struct {
	Type    string `json:"type" validate:"required,oneof=send_email send_sms"`
	To      string `json:"to" validate:"required,min=1,max=500"`
	Subject string `json:"subject,omitempty" validate:"omitempty,max=500"`
	Body    string `json:"body" validate:"required,min=1"`
}

type CreateRuleRequest struct {
	Name     string          `json:"name" validate:"required,min=1,max=200"`
	Trigger  string          `json:"trigger" validate:"required,min=1,max=60"`
	IsActive *bool           `json:"isActive,omitempty" validate:"-"`
	Actions  []ActionRequest `json:"actions" validate:"required,min=1,dive"`
}
