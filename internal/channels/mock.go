package channels

import (
	"context"
	"fmt"
	"time"
)

// MockProvider stands in when a workspace has no account connected for a
// channel. It performs no network I/O and always succeeds, so automation
// remains usable on a fresh workspace.
type MockProvider struct {
	channel Channel
	log     interface {
		Info(msg string, args ...any)
	}
	now func() time.Time
}

// NewMockProvider creates a mock provider for the given channel.
func NewMockProvider(channel Channel, log interface {
	Info(msg string, args ...any)
}) *MockProvider {
	return &MockProvider{channel: channel, log: log, now: time.Now}
}

func (p *MockProvider) Name() string { return ProviderMock }

// Send logs the message and synthesizes a provider reference.
func (p *MockProvider) Send(_ context.Context, _ *Account, input SendInput) SendResult {
	prefix := "mock-email"
	if p.channel == ChannelSMS {
		prefix = "mock-sms"
	}

	p.log.Info("mock channel send",
		"channel", string(p.channel),
		"to", input.To,
		"subject", input.Subject,
	)

	return SendResult{
		Success:     true,
		ProviderRef: fmt.Sprintf("%s-%d", prefix, p.now().UnixMilli()),
	}
}
