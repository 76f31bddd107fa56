package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"opsdesk_backend/internal/automation/domain"
	"opsdesk_backend/internal/channels"
	"opsdesk_backend/internal/events"
	messagingdomain "opsdesk_backend/internal/messaging/domain"
	messagingrepo "opsdesk_backend/internal/messaging/repository"
	"opsdesk_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeEventStore struct {
	appended []domain.LogEventParams
	err      error
}

func (s *fakeEventStore) Append(_ context.Context, params domain.LogEventParams) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	s.appended = append(s.appended, params)
	return events.Event{
		ID:          uuid.New(),
		WorkspaceID: params.WorkspaceID,
		Type:        params.Type,
		EntityType:  params.EntityType,
		EntityID:    params.EntityID,
		Payload:     params.Payload,
		CreatedAt:   time.Now(),
	}, nil
}

type fakeRuleStore struct {
	rules   []domain.Rule
	created []domain.Rule
	count   int
}

func (s *fakeRuleStore) ListActive(_ context.Context, workspaceID uuid.UUID, trigger events.Type) ([]domain.Rule, error) {
	matched := make([]domain.Rule, 0)
	for _, rule := range s.rules {
		if rule.WorkspaceID == workspaceID && rule.Trigger == trigger && rule.IsActive {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

func (s *fakeRuleStore) List(_ context.Context, workspaceID uuid.UUID) ([]domain.Rule, error) {
	return s.rules, nil
}

func (s *fakeRuleStore) Create(_ context.Context, rule domain.Rule) error {
	s.created = append(s.created, rule)
	return nil
}

func (s *fakeRuleStore) CountByWorkspace(_ context.Context, _ uuid.UUID) (int, error) {
	return s.count, nil
}

type sentCall struct {
	input  channels.SendInput
	result channels.SendResult
}

type fakeSender struct {
	results []channels.SendResult
	calls   []sentCall
}

func (s *fakeSender) Send(_ context.Context, input channels.SendInput) channels.SendResult {
	result := channels.SendResult{Success: true, ProviderRef: "ref"}
	if len(s.results) > 0 {
		result = s.results[0]
		s.results = s.results[1:]
	}
	s.calls = append(s.calls, sentCall{input: input, result: result})
	return result
}

type fakeMessageWriter struct {
	recorded []messagingrepo.OutboundMessageParams
	err      error
}

func (w *fakeMessageWriter) RecordOutbound(_ context.Context, params messagingrepo.OutboundMessageParams) (uuid.UUID, error) {
	if w.err != nil {
		return uuid.Nil, w.err
	}
	w.recorded = append(w.recorded, params)
	return uuid.New(), nil
}

type fakeConversationStore struct {
	conversation *messagingdomain.Conversation
	threadIDs    map[uuid.UUID]string
	setErr       error
}

func (s *fakeConversationStore) FindConversationByEntity(_ context.Context, _ uuid.UUID, entityType string, entityID uuid.UUID) (*messagingdomain.Conversation, error) {
	if s.conversation == nil {
		return nil, messagingrepo.ErrConversationNotFound
	}
	return s.conversation, nil
}

func (s *fakeConversationStore) SetEmailThreadID(_ context.Context, conversationID uuid.UUID, threadID string) error {
	if s.setErr != nil {
		return s.setErr
	}
	if s.threadIDs == nil {
		s.threadIDs = make(map[uuid.UUID]string)
	}
	s.threadIDs[conversationID] = threadID
	return nil
}

func newTestEngine(rules *fakeRuleStore, sender *fakeSender, writer *fakeMessageWriter, conversations *fakeConversationStore) *Engine {
	return NewEngine(&fakeEventStore{}, rules, sender, writer, conversations, logger.New("development"))
}

func emailAction(to, subject, body string) domain.Action {
	return domain.Action{Type: domain.ActionSendEmail, To: to, Subject: subject, Body: body}
}

func TestLogEventRejectsUnknownType(t *testing.T) {
	engine := newTestEngine(&fakeRuleStore{}, &fakeSender{}, &fakeMessageWriter{}, &fakeConversationStore{})

	_, err := engine.LogEvent(context.Background(), domain.LogEventParams{
		WorkspaceID: uuid.New(),
		Type:        "NOT_A_TYPE",
		EntityType:  "Booking",
		EntityID:    uuid.NewString(),
	})
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestLogEventPropagatesAppendFailure(t *testing.T) {
	store := &fakeEventStore{err: errors.New("disk full")}
	engine := NewEngine(store, &fakeRuleStore{}, &fakeSender{}, &fakeMessageWriter{}, &fakeConversationStore{}, logger.New("development"))

	_, err := engine.LogEvent(context.Background(), domain.LogEventParams{
		WorkspaceID: uuid.New(),
		Type:        events.TypeLeadCreated,
		EntityType:  "Lead",
		EntityID:    uuid.NewString(),
	})
	if err == nil {
		t.Fatal("expected event-log write failure to propagate")
	}
}

func TestEmptyResolvedRecipientSkipsAction(t *testing.T) {
	workspaceID := uuid.New()
	rules := &fakeRuleStore{rules: []domain.Rule{{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Trigger:     events.TypeLeadCreated,
		IsActive:    true,
		Actions: []domain.Action{
			emailAction("{{customerEmail}}", "Welcome", "Hi {{customerName}}"),
			{Type: domain.ActionSendSMS, To: "{{customerPhone}}", Body: "Hi"},
			emailAction("team@example.com", "Internal", "New lead"),
		},
	}}}
	sender := &fakeSender{}
	engine := newTestEngine(rules, sender, &fakeMessageWriter{}, &fakeConversationStore{})

	// No customerPhone in the payload: the SMS action must be skipped.
	_, err := engine.LogEvent(context.Background(), domain.LogEventParams{
		WorkspaceID: workspaceID,
		Type:        events.TypeLeadCreated,
		EntityType:  "Lead",
		EntityID:    uuid.NewString(),
		Payload:     map[string]any{"customerEmail": "a@b.com", "customerName": "Jo"},
	})
	if err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	if len(sender.calls) != 2 {
		t.Fatalf("expected 2 send attempts, got %d", len(sender.calls))
	}
	for _, call := range sender.calls {
		if call.input.Channel != channels.ChannelEmail {
			t.Fatalf("unexpected channel %s dispatched", call.input.Channel)
		}
	}
}

func TestFailedActionDoesNotStopFollowingActions(t *testing.T) {
	workspaceID := uuid.New()
	rules := &fakeRuleStore{rules: []domain.Rule{{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Trigger:     events.TypeBookingCreated,
		IsActive:    true,
		Actions: []domain.Action{
			emailAction("a@b.com", "First", "one"),
			emailAction("a@b.com", "Second", "two"),
		},
	}}}
	sender := &fakeSender{results: []channels.SendResult{
		{Success: false, Error: "upstream 500"},
		{Success: true, ProviderRef: "ok"},
	}}
	writer := &fakeMessageWriter{}
	engine := newTestEngine(rules, sender, writer, &fakeConversationStore{})

	event, err := engine.LogEvent(context.Background(), domain.LogEventParams{
		WorkspaceID: workspaceID,
		Type:        events.TypeBookingCreated,
		EntityType:  "Booking",
		EntityID:    uuid.NewString(),
		Payload:     map[string]any{},
	})
	if err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}
	if event.ID == uuid.Nil {
		t.Fatal("expected persisted event back even with a failed action")
	}

	if len(sender.calls) != 2 {
		t.Fatalf("expected both actions attempted, got %d", len(sender.calls))
	}

	if len(writer.recorded) != 2 {
		t.Fatalf("expected a message row per attempt, got %d", len(writer.recorded))
	}
	if writer.recorded[0].Status != messagingdomain.StatusFailed {
		t.Fatalf("first attempt should be FAILED, got %s", writer.recorded[0].Status)
	}
	if writer.recorded[1].Status != messagingdomain.StatusSent {
		t.Fatalf("second attempt should be SENT, got %s", writer.recorded[1].Status)
	}
}

func TestUnknownActionTypeIsIgnored(t *testing.T) {
	workspaceID := uuid.New()
	rules := &fakeRuleStore{rules: []domain.Rule{{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Trigger:     events.TypeFormSubmitted,
		IsActive:    true,
		Actions: []domain.Action{
			{Type: "launch_rocket", To: "a@b.com", Body: "boom"},
			emailAction("a@b.com", "Form received", "thanks"),
		},
	}}}
	sender := &fakeSender{}
	engine := newTestEngine(rules, sender, &fakeMessageWriter{}, &fakeConversationStore{})

	_, err := engine.LogEvent(context.Background(), domain.LogEventParams{
		WorkspaceID: workspaceID,
		Type:        events.TypeFormSubmitted,
		EntityType:  "FormSubmission",
		EntityID:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	if len(sender.calls) != 1 {
		t.Fatalf("expected only the known action to dispatch, got %d calls", len(sender.calls))
	}
}

func TestEmailThreadIsCorrelatedToBookingConversation(t *testing.T) {
	workspaceID := uuid.New()
	bookingID := uuid.New()
	conversation := &messagingdomain.Conversation{ID: uuid.New(), WorkspaceID: workspaceID}

	rules := &fakeRuleStore{rules: []domain.Rule{{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Trigger:     events.TypeBookingCreated,
		IsActive:    true,
		Actions:     []domain.Action{emailAction("a@b.com", "Confirmation", "hi")},
	}}}
	sender := &fakeSender{results: []channels.SendResult{
		{Success: true, ProviderRef: "m-1", ThreadID: "thread-42"},
	}}
	conversations := &fakeConversationStore{conversation: conversation}
	engine := newTestEngine(rules, sender, &fakeMessageWriter{}, conversations)

	_, err := engine.LogEvent(context.Background(), domain.LogEventParams{
		WorkspaceID: workspaceID,
		Type:        events.TypeBookingCreated,
		EntityType:  events.EntityBooking,
		EntityID:    bookingID.String(),
		Payload:     map[string]any{},
	})
	if err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	if conversations.threadIDs[conversation.ID] != "thread-42" {
		t.Fatalf("expected thread id persisted on conversation, got %q", conversations.threadIDs[conversation.ID])
	}
}

func TestMissingConversationDoesNotFailLogEvent(t *testing.T) {
	workspaceID := uuid.New()
	rules := &fakeRuleStore{rules: []domain.Rule{{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Trigger:     events.TypeBookingCreated,
		IsActive:    true,
		Actions:     []domain.Action{emailAction("a@b.com", "Confirmation", "hi")},
	}}}
	sender := &fakeSender{results: []channels.SendResult{
		{Success: true, ProviderRef: "m-1", ThreadID: "thread-42"},
	}}
	engine := newTestEngine(rules, sender, &fakeMessageWriter{}, &fakeConversationStore{})

	_, err := engine.LogEvent(context.Background(), domain.LogEventParams{
		WorkspaceID: workspaceID,
		Type:        events.TypeBookingCreated,
		EntityType:  events.EntityBooking,
		EntityID:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("expected success despite missing conversation, got %v", err)
	}
}

func TestBookingCreatedEndToEndBody(t *testing.T) {
	workspaceID := uuid.New()
	rules := &fakeRuleStore{rules: []domain.Rule{{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Trigger:     events.TypeBookingCreated,
		IsActive:    true,
		Actions: []domain.Action{emailAction(
			"{{customerEmail}}",
			"Booking Confirmation",
			"Hi {{customerName}}, your {{bookingType}} on {{startAt}} is received.",
		)},
	}}}
	sender := &fakeSender{results: []channels.SendResult{
		{Success: true, ProviderRef: "m-1", From: "owner@shop.com"},
	}}
	writer := &fakeMessageWriter{}
	engine := newTestEngine(rules, sender, writer, &fakeConversationStore{})

	_, err := engine.LogEvent(context.Background(), domain.LogEventParams{
		WorkspaceID: workspaceID,
		Type:        events.TypeBookingCreated,
		EntityType:  events.EntityBooking,
		EntityID:    uuid.NewString(),
		Payload: map[string]any{
			"customerEmail": "a@b.com",
			"customerName":  "Jo",
			"bookingType":   "Consult",
			"startAt":       "Jan 1",
		},
	})
	if err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	if len(writer.recorded) != 1 {
		t.Fatalf("expected one message recorded, got %d", len(writer.recorded))
	}
	msg := writer.recorded[0]
	if msg.ToAddress != "a@b.com" {
		t.Fatalf("unexpected recipient %q", msg.ToAddress)
	}
	if msg.FromAddress != "owner@shop.com" {
		t.Fatalf("sender address not recorded, got %q", msg.FromAddress)
	}
	if msg.Body != "Hi Jo, your Consult on Jan 1 is received." {
		t.Fatalf("unexpected body %q", msg.Body)
	}
	if msg.Status != messagingdomain.StatusSent {
		t.Fatalf("unexpected status %s", msg.Status)
	}
}

func TestBootstrapDefaultRulesIsIdempotent(t *testing.T) {
	workspaceID := uuid.New()

	fresh := &fakeRuleStore{count: 0}
	engine := newTestEngine(fresh, &fakeSender{}, &fakeMessageWriter{}, &fakeConversationStore{})

	created, err := engine.BootstrapDefaultRules(context.Background(), workspaceID)
	if err != nil {
		t.Fatalf("bootstrap returned error: %v", err)
	}
	if len(created) != 4 {
		t.Fatalf("expected 4 stock rules, got %d", len(created))
	}
	if len(fresh.created) != 4 {
		t.Fatalf("expected 4 rules persisted, got %d", len(fresh.created))
	}

	seeded := &fakeRuleStore{count: 3}
	engine = newTestEngine(seeded, &fakeSender{}, &fakeMessageWriter{}, &fakeConversationStore{})

	created, err = engine.BootstrapDefaultRules(context.Background(), workspaceID)
	if err != nil {
		t.Fatalf("bootstrap returned error: %v", err)
	}
	if len(created) != 0 || len(seeded.created) != 0 {
		t.Fatal("expected no rules created for an already-seeded workspace")
	}
}

func TestCreateRuleValidatesTriggerAndActions(t *testing.T) {
	engine := newTestEngine(&fakeRuleStore{}, &fakeSender{}, &fakeMessageWriter{}, &fakeConversationStore{})

	_, err := engine.CreateRule(context.Background(), domain.Rule{
		WorkspaceID: uuid.New(),
		Name:        "bad trigger",
		Trigger:     "NOPE",
		Actions:     []domain.Action{emailAction("a@b.com", "s", "b")},
	})
	if err == nil {
		t.Fatal("expected error for unknown trigger")
	}

	_, err = engine.CreateRule(context.Background(), domain.Rule{
		WorkspaceID: uuid.New(),
		Name:        "no actions",
		Trigger:     events.TypeLeadCreated,
	})
	if err == nil {
		t.Fatal("expected error for empty action list")
	}
}
