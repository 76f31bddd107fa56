// Package webhook receives inbound provider callbacks (SMS replies) and
// turns them into INBOUND message rows on the shared conversation model.
package webhook

import (
	"context"
	"errors"
	"net/http"

	"opsdesk_backend/internal/channels"
	"opsdesk_backend/internal/messaging/domain"
	messagingrepo "opsdesk_backend/internal/messaging/repository"
	"opsdesk_backend/platform/logger"
	"opsdesk_backend/platform/phone"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const emptyTwiML = `<Response></Response>`

// AccountFinder locates the SMS channel account an inbound number belongs to.
type AccountFinder interface {
	FindActiveSMSByNumber(ctx context.Context, number string) (*channels.Account, error)
	FirstActiveSMS(ctx context.Context) (*channels.Account, error)
}

// InboxWriter persists inbound messages against customer conversations.
type InboxWriter interface {
	FindCustomerByPhone(ctx context.Context, workspaceID uuid.UUID, phoneVariants []string) (*domain.Customer, error)
	FindOrCreateCustomerConversation(ctx context.Context, workspaceID, customerID uuid.UUID, subject string) (*domain.Conversation, error)
	RecordInbound(ctx context.Context, conversationID uuid.UUID, channel channels.Channel, fromAddress, body string) (uuid.UUID, error)
}

type Handler struct {
	accounts           AccountFinder
	inbox              InboxWriter
	fallbackFromNumber string
	log                *logger.Logger
}

// New creates the webhook handler. fallbackFromNumber is the process-wide
// Twilio number, used to attribute replies when no account matches directly.
func New(accounts AccountFinder, inbox InboxWriter, fallbackFromNumber string, log *logger.Logger) *Handler {
	return &Handler{
		accounts:           accounts,
		inbox:              inbox,
		fallbackFromNumber: fallbackFromNumber,
		log:                log,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sms/inbound", h.InboundSMS)
}

// InboundSMS handles Twilio's delivery callback for replies. Twilio expects
// TwiML back and retries on non-2xx, so every internal failure is answered
// with 200 and an empty response.
func (h *Handler) InboundSMS(c *gin.Context) {
	from, to, body := h.parseInbound(c)
	if from == "" || body == "" {
		c.Data(http.StatusBadRequest, "text/xml", []byte(`<Response><Message>Missing required fields</Message></Response>`))
		return
	}

	account, err := h.accounts.FindActiveSMSByNumber(c.Request.Context(), to)
	if err != nil {
		if !errors.Is(err, channels.ErrAccountNotFound) {
			h.log.Error("inbound sms account lookup failed", "to", to, "error", err.Error())
			h.empty(c)
			return
		}
		account = h.fallbackAccount(c.Request.Context(), to)
	}
	if account == nil {
		h.log.Warn("inbound sms has no matching channel account", "to", to)
		h.empty(c)
		return
	}

	h.handleInbound(c, account.WorkspaceID, from, body)
}

func (h *Handler) handleInbound(c *gin.Context, workspaceID uuid.UUID, from, body string) {
	ctx := c.Request.Context()

	customer, err := h.inbox.FindCustomerByPhone(ctx, workspaceID, phone.Variants(from))
	if err != nil {
		if !errors.Is(err, messagingrepo.ErrCustomerNotFound) {
			h.log.Error("inbound sms customer lookup failed",
				"workspace_id", workspaceID.String(),
				"error", err.Error(),
			)
		} else {
			h.log.Info("inbound sms from unknown number",
				"workspace_id", workspaceID.String(),
				"from", from,
			)
		}
		h.empty(c)
		return
	}

	subject := "SMS from " + customer.Name
	if customer.Name == "" {
		subject = "SMS from " + from
	}

	conversation, err := h.inbox.FindOrCreateCustomerConversation(ctx, workspaceID, customer.ID, subject)
	if err != nil {
		h.log.Error("inbound sms conversation lookup failed",
			"workspace_id", workspaceID.String(),
			"customer_id", customer.ID.String(),
			"error", err.Error(),
		)
		h.empty(c)
		return
	}

	if _, err := h.inbox.RecordInbound(ctx, conversation.ID, channels.ChannelSMS, from, body); err != nil {
		h.log.Error("inbound sms persist failed",
			"conversation_id", conversation.ID.String(),
			"error", err.Error(),
		)
	}

	h.empty(c)
}

// fallbackAccount attributes a reply sent to the process-wide number to the
// first workspace with SMS connected. Single-tenant escape hatch.
func (h *Handler) fallbackAccount(ctx context.Context, to string) *channels.Account {
	if h.fallbackFromNumber == "" {
		return nil
	}

	matched := false
	for _, variant := range phone.Variants(to) {
		if variant == h.fallbackFromNumber {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}

	account, err := h.accounts.FirstActiveSMS(ctx)
	if err != nil {
		return nil
	}
	return account
}

func (h *Handler) parseInbound(c *gin.Context) (from, to, body string) {
	contentType := c.ContentType()
	if contentType == "application/x-www-form-urlencoded" || contentType == "multipart/form-data" {
		return c.PostForm("From"), c.PostForm("To"), c.PostForm("Body")
	}

	var payload struct {
		From string `json:"From"`
		To   string `json:"To"`
		Body string `json:"Body"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		return "", "", ""
	}
	return payload.From, payload.To, payload.Body
}

func (h *Handler) empty(c *gin.Context) {
	c.Data(http.StatusOK, "text/xml", []byte(emptyTwiML))
}
