// Package channels routes outbound notifications to the provider connected
// for a workspace and channel, falling back to mock providers so the rest of
// the system works without any channel configured.
package channels

import (
	"context"
	"errors"
	"fmt"

	"opsdesk_backend/platform/logger"

	"github.com/google/uuid"
)

// Channel is a notification transport category.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// SendInput describes one outbound message to dispatch.
type SendInput struct {
	WorkspaceID uuid.UUID
	Channel     Channel
	To          string
	Subject     string
	Body        string
	// ThreadID continues an existing provider-side email thread when set.
	ThreadID string
}

// SendResult is the outcome of a dispatch attempt. Provider failures are
// reported here, never as returned errors, so one failed channel cannot
// abort an automation run. From is the sender address the provider used
// (account email, SMS number), recorded on the outbound audit row.
type SendResult struct {
	Success     bool
	ProviderRef string
	ThreadID    string
	From        string
	Error       string
}

func failure(format string, args ...any) SendResult {
	return SendResult{Error: fmt.Sprintf(format, args...)}
}

// Provider performs the actual send for a channel via an external API.
type Provider interface {
	Name() string
	Send(ctx context.Context, account *Account, input SendInput) SendResult
}

// ErrAccountNotFound is returned by AccountStore lookups with no match.
var ErrAccountNotFound = errors.New("channel account not found")

// AccountStore is the narrow persistence surface the router needs.
type AccountStore interface {
	// FindActive returns the active account for (workspace, type, provider),
	// or ErrAccountNotFound.
	FindActive(ctx context.Context, workspaceID uuid.UUID, accountType AccountType, provider string) (*Account, error)
	// UpdateCredentials replaces the credential blob of an account.
	UpdateCredentials(ctx context.Context, accountID uuid.UUID, config any) error
}

// Router selects the provider for a send request using a fixed, ordered
// policy: connected Gmail, then tenant SMTP, for email; connected Twilio or
// injected fallback credentials for SMS; mock otherwise.
type Router struct {
	accounts   AccountStore
	gmail      Provider
	smtp       Provider
	twilio     Provider
	mockEmail  Provider
	mockSMS    Provider
	smsDefault TwilioCredentials
	log        *logger.Logger
}

// NewRouter constructs a Router over the given providers. smsDefault holds
// the process-wide Twilio fallback; pass the zero value to disable it.
func NewRouter(accounts AccountStore, gmail, smtp, twilio Provider, smsDefault TwilioCredentials, log *logger.Logger) *Router {
	return &Router{
		accounts:   accounts,
		gmail:      gmail,
		smtp:       smtp,
		twilio:     twilio,
		mockEmail:  NewMockProvider(ChannelEmail, log),
		mockSMS:    NewMockProvider(ChannelSMS, log),
		smsDefault: smsDefault,
		log:        log,
	}
}

// Send dispatches the message through the selected provider. It never
// returns an error and never panics past this boundary; every failure mode
// ends up as a SendResult with Success=false.
func (r *Router) Send(ctx context.Context, input SendInput) (result SendResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = failure("channel %s send panicked: %v", input.Channel, rec)
			r.log.Error("channel send panic",
				"workspace_id", input.WorkspaceID.String(),
				"channel", string(input.Channel),
				"panic", fmt.Sprint(rec),
			)
		}
	}()

	provider, account, err := r.route(ctx, input)
	if err != nil {
		return failure("channel %s routing failed: %v", input.Channel, err)
	}

	result = provider.Send(ctx, account, input)
	r.log.SendAttempt(input.WorkspaceID.String(), string(input.Channel), provider.Name(), input.To, result.Success, result.Error)
	return result
}

func (r *Router) route(ctx context.Context, input SendInput) (Provider, *Account, error) {
	switch input.Channel {
	case ChannelEmail:
		account, err := r.accounts.FindActive(ctx, input.WorkspaceID, AccountTypeEmail, ProviderGoogle)
		if err == nil {
			return r.gmail, account, nil
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, nil, err
		}

		account, err = r.accounts.FindActive(ctx, input.WorkspaceID, AccountTypeEmail, ProviderSMTP)
		if err == nil {
			return r.smtp, account, nil
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, nil, err
		}

		return r.mockEmail, nil, nil

	case ChannelSMS:
		account, err := r.accounts.FindActive(ctx, input.WorkspaceID, AccountTypeSMS, ProviderTwilio)
		if err == nil {
			return r.twilio, account, nil
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, nil, err
		}
		if r.smsDefault.Complete() {
			return r.twilio, nil, nil
		}

		return r.mockSMS, nil, nil
	}

	return nil, nil, fmt.Errorf("unknown channel %q", input.Channel)
}
