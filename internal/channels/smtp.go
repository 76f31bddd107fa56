package channels

import (
	"context"
	"net"
	"time"

	"opsdesk_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// SMTPProvider sends email over a workspace's own SMTP server. It is the
// email fallback for workspaces that configured tenant SMTP instead of
// connecting a Gmail account.
type SMTPProvider struct {
	log *logger.Logger
}

// NewSMTPProvider creates an SMTP provider.
func NewSMTPProvider(log *logger.Logger) *SMTPProvider {
	return &SMTPProvider{log: log}
}

func (p *SMTPProvider) Name() string { return ProviderSMTP }

// Send delivers the message via the account's SMTP credentials.
func (p *SMTPProvider) Send(ctx context.Context, account *Account, input SendInput) SendResult {
	if account == nil {
		return failure("no SMTP account found")
	}

	creds, err := account.DecodeSMTPCredentials()
	if err != nil {
		return failure("invalid SMTP account config: %v", err)
	}
	if creds.Host == "" || creds.FromAddress == "" {
		return failure("SMTP account is missing host or sender address")
	}

	msg := gomail.NewMsg()
	if creds.FromName != "" {
		err = msg.FromFormat(creds.FromName, creds.FromAddress)
	} else {
		err = msg.From(creds.FromAddress)
	}
	if err != nil {
		return failure("smtp from: %v", err)
	}
	if err := msg.To(input.To); err != nil {
		return failure("smtp to: %v", err)
	}

	subject := input.Subject
	if subject == "" {
		subject = "No Subject"
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, input.Body)
	msg.SetMessageID()

	client, err := gomail.NewClient(creds.Host,
		gomail.WithPort(creds.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(creds.Username),
		gomail.WithPassword(creds.Password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return failure("smtp client: %v", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return failure("smtp send: %v", err)
	}

	return SendResult{Success: true, ProviderRef: msg.GetMessageID(), From: creds.FromAddress}
}
