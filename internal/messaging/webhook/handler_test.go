package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"opsdesk_backend/internal/channels"
	"opsdesk_backend/internal/messaging/domain"
	messagingrepo "opsdesk_backend/internal/messaging/repository"
	"opsdesk_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeAccountFinder struct {
	byNumber map[string]*channels.Account
	first    *channels.Account
}

func (f *fakeAccountFinder) FindActiveSMSByNumber(_ context.Context, number string) (*channels.Account, error) {
	account, ok := f.byNumber[number]
	if !ok {
		return nil, channels.ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeAccountFinder) FirstActiveSMS(_ context.Context) (*channels.Account, error) {
	if f.first == nil {
		return nil, channels.ErrAccountNotFound
	}
	return f.first, nil
}

type inboundRecord struct {
	conversationID uuid.UUID
	from           string
	body           string
}

type fakeInbox struct {
	customer     *domain.Customer
	conversation *domain.Conversation
	recorded     []inboundRecord
}

func (f *fakeInbox) FindCustomerByPhone(_ context.Context, _ uuid.UUID, _ []string) (*domain.Customer, error) {
	if f.customer == nil {
		return nil, messagingrepo.ErrCustomerNotFound
	}
	return f.customer, nil
}

func (f *fakeInbox) FindOrCreateCustomerConversation(_ context.Context, workspaceID, customerID uuid.UUID, subject string) (*domain.Conversation, error) {
	if f.conversation == nil {
		f.conversation = &domain.Conversation{
			ID:          uuid.New(),
			WorkspaceID: workspaceID,
			CustomerID:  customerID,
			Subject:     subject,
		}
	}
	return f.conversation, nil
}

func (f *fakeInbox) RecordInbound(_ context.Context, conversationID uuid.UUID, _ channels.Channel, fromAddress, body string) (uuid.UUID, error) {
	f.recorded = append(f.recorded, inboundRecord{conversationID: conversationID, from: fromAddress, body: body})
	return uuid.New(), nil
}

func newWebhookRouter(accounts AccountFinder, inbox InboxWriter, fallbackNumber string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	New(accounts, inbox, fallbackNumber, logger.New("development")).RegisterRoutes(engine.Group("/api/public"))
	return engine
}

func postInboundForm(router *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/public/sms/inbound", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestInboundSMSRecordsReplyFromKnownCustomer(t *testing.T) {
	workspaceID := uuid.New()
	account := &channels.Account{ID: uuid.New(), WorkspaceID: workspaceID, Type: channels.AccountTypeSMS, FromNumber: "+15550001111"}
	accounts := &fakeAccountFinder{byNumber: map[string]*channels.Account{"+15550001111": account}}
	inbox := &fakeInbox{customer: &domain.Customer{ID: uuid.New(), WorkspaceID: workspaceID, Name: "Jo", Phone: "+12125550123"}}
	router := newWebhookRouter(accounts, inbox, "")

	rec := postInboundForm(router, url.Values{
		"From": {"+12125550123"},
		"To":   {"+15550001111"},
		"Body": {"YES confirm"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(inbox.recorded) != 1 {
		t.Fatalf("expected 1 inbound message, got %d", len(inbox.recorded))
	}
	got := inbox.recorded[0]
	if got.from != "+12125550123" || got.body != "YES confirm" {
		t.Fatalf("unexpected record %+v", got)
	}
	if inbox.conversation == nil || got.conversationID != inbox.conversation.ID {
		t.Fatal("message not attached to the customer conversation")
	}
	if inbox.conversation.Subject != "SMS from Jo" {
		t.Fatalf("unexpected conversation subject %q", inbox.conversation.Subject)
	}
}

func TestInboundSMSUnknownSenderAnswersEmptyTwiML(t *testing.T) {
	workspaceID := uuid.New()
	account := &channels.Account{ID: uuid.New(), WorkspaceID: workspaceID, Type: channels.AccountTypeSMS, FromNumber: "+15550001111"}
	accounts := &fakeAccountFinder{byNumber: map[string]*channels.Account{"+15550001111": account}}
	inbox := &fakeInbox{}
	router := newWebhookRouter(accounts, inbox, "")

	rec := postInboundForm(router, url.Values{
		"From": {"+12125550123"},
		"To":   {"+15550001111"},
		"Body": {"hello?"},
	})

	// Twilio retries on non-2xx, so an unknown sender still gets 200.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "<Response></Response>" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if len(inbox.recorded) != 0 {
		t.Fatal("no message should be recorded for an unknown sender")
	}
}

func TestInboundSMSMissingFieldsRejected(t *testing.T) {
	router := newWebhookRouter(&fakeAccountFinder{}, &fakeInbox{}, "")

	rec := postInboundForm(router, url.Values{"From": {"+12125550123"}})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing required fields") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestInboundSMSNoMatchingAccountAnswersEmpty(t *testing.T) {
	inbox := &fakeInbox{customer: &domain.Customer{ID: uuid.New(), Name: "Jo"}}
	router := newWebhookRouter(&fakeAccountFinder{}, inbox, "")

	rec := postInboundForm(router, url.Values{
		"From": {"+12125550123"},
		"To":   {"+19998887777"},
		"Body": {"hi"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(inbox.recorded) != 0 {
		t.Fatal("nothing should be recorded without a matching account")
	}
}

func TestInboundSMSFallbackNumberRoutesToFirstAccount(t *testing.T) {
	workspaceID := uuid.New()
	first := &channels.Account{ID: uuid.New(), WorkspaceID: workspaceID, Type: channels.AccountTypeSMS}
	accounts := &fakeAccountFinder{first: first}
	inbox := &fakeInbox{customer: &domain.Customer{ID: uuid.New(), WorkspaceID: workspaceID, Name: "Jo"}}
	router := newWebhookRouter(accounts, inbox, "+15550009999")

	rec := postInboundForm(router, url.Values{
		"From": {"+12125550123"},
		"To":   {"+15550009999"},
		"Body": {"reply"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(inbox.recorded) != 1 {
		t.Fatalf("expected the reply recorded via the fallback account, got %d", len(inbox.recorded))
	}
}
