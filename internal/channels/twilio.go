package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"opsdesk_backend/platform/config"
	"opsdesk_backend/platform/logger"
	"opsdesk_backend/platform/phone"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioProvider sends SMS through the Twilio Messages API. Credentials come
// from the workspace's SMS channel account when one is connected, otherwise
// from the injected process-wide fallback.
type TwilioProvider struct {
	fallback TwilioCredentials
	baseURL  string
	http     *http.Client
	log      *logger.Logger
}

// NewTwilioProvider creates a Twilio provider with the given fallback
// credentials (zero value when none are configured).
func NewTwilioProvider(cfg config.TwilioConfig, log *logger.Logger) *TwilioProvider {
	return &TwilioProvider{
		fallback: TwilioCredentials{
			AccountSID: cfg.GetTwilioAccountSID(),
			AuthToken:  cfg.GetTwilioAuthToken(),
			FromNumber: cfg.GetTwilioFromNumber(),
		},
		baseURL: twilioAPIBase,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (p *TwilioProvider) Name() string { return ProviderTwilio }

// Send delivers the SMS. account may be nil when routing selected this
// provider via the fallback credentials.
func (p *TwilioProvider) Send(ctx context.Context, account *Account, input SendInput) SendResult {
	creds, err := p.resolveCredentials(account)
	if err != nil {
		return failure("%v", err)
	}

	to := phone.NormalizeE164(input.To)
	if !strings.HasPrefix(to, "+") {
		to = "+" + to
	}

	form := url.Values{
		"To":   {to},
		"From": {creds.FromNumber},
		"Body": {input.Body},
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, creds.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failure("build Twilio request: %v", err)
	}
	req.SetBasicAuth(creds.AccountSID, creds.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return failure("Twilio request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return failure("Twilio send returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var sent struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(data, &sent); err != nil {
		return failure("decode Twilio response: %v", err)
	}

	return SendResult{Success: true, ProviderRef: sent.SID, From: creds.FromNumber}
}

func (p *TwilioProvider) resolveCredentials(account *Account) (TwilioCredentials, error) {
	if account != nil {
		creds, err := account.DecodeTwilioCredentials()
		if err != nil {
			return TwilioCredentials{}, fmt.Errorf("invalid Twilio account config: %w", err)
		}
		if creds.Complete() {
			return creds, nil
		}
	}

	if p.fallback.Complete() {
		return p.fallback, nil
	}

	return TwilioCredentials{}, fmt.Errorf("no Twilio account configured and no fallback credentials set")
}
