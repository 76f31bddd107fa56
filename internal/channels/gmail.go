package channels

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"opsdesk_backend/platform/config"
	"opsdesk_backend/platform/logger"
)

const (
	googleTokenEndpoint = "https://oauth2.googleapis.com/token"
	gmailSendEndpoint   = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

	// Refresh this long before the stored expiry so a token that is about
	// to lapse is never used for a send.
	tokenExpiryMargin = 60 * time.Second
)

// GmailProvider sends email through the Gmail API using a workspace's
// OAuth-connected account. Access tokens are refreshed lazily before each
// send when they are expired or about to expire; the refreshed token is
// persisted back onto the channel account.
type GmailProvider struct {
	clientID     string
	clientSecret string
	tokenURL     string
	sendURL      string
	accounts     AccountStore
	http         *http.Client
	now          func() time.Time
	log          *logger.Logger
}

// NewGmailProvider creates a Gmail provider using the configured OAuth client.
func NewGmailProvider(cfg config.GoogleOAuthConfig, accounts AccountStore, log *logger.Logger) *GmailProvider {
	return &GmailProvider{
		clientID:     cfg.GetGoogleClientID(),
		clientSecret: cfg.GetGoogleClientSecret(),
		tokenURL:     googleTokenEndpoint,
		sendURL:      gmailSendEndpoint,
		accounts:     accounts,
		http:         &http.Client{Timeout: 10 * time.Second},
		now:          time.Now,
		log:          log,
	}
}

func (p *GmailProvider) Name() string { return ProviderGoogle }

// Send delivers the message via the account's Gmail connection.
func (p *GmailProvider) Send(ctx context.Context, account *Account, input SendInput) SendResult {
	if account == nil {
		return failure("no connected Gmail account found")
	}

	tokens, err := account.DecodeGoogleTokens()
	if err != nil {
		return failure("invalid Gmail account config: %v", err)
	}
	if tokens.RefreshToken == "" {
		return failure("Gmail refresh token missing, reconnect the account")
	}

	accessToken, err := p.freshAccessToken(ctx, account, tokens)
	if err != nil {
		return failure("Gmail token refresh failed: %v", err)
	}

	subject := input.Subject
	if subject == "" {
		subject = "No Subject"
	}
	raw := buildRawEmail(tokens.Email, input.To, subject, input.Body)

	payload := map[string]string{"raw": raw}
	if input.ThreadID != "" {
		payload["threadId"] = input.ThreadID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return failure("marshal Gmail payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.sendURL, bytes.NewReader(body))
	if err != nil {
		return failure("build Gmail request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return failure("Gmail request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return failure("Gmail send returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var sent struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	}
	if err := json.Unmarshal(data, &sent); err != nil {
		return failure("decode Gmail response: %v", err)
	}

	return SendResult{Success: true, ProviderRef: sent.ID, ThreadID: sent.ThreadID, From: tokens.Email}
}

// freshAccessToken returns a usable access token, exchanging the refresh
// token when the stored one is within the expiry margin. The refresh is
// gated on the expiry check only; concurrent refreshes are harmless because
// each exchange yields an independently valid token and the last write wins.
func (p *GmailProvider) freshAccessToken(ctx context.Context, account *Account, tokens GoogleTokens) (string, error) {
	if !tokens.ExpiresWithin(p.now(), tokenExpiryMargin) {
		return tokens.AccessToken, nil
	}

	form := url.Values{
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"refresh_token": {tokens.RefreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		// Leave the stale token in place; a partial update would be worse.
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var refreshed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &refreshed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	tokens.AccessToken = refreshed.AccessToken
	tokens.ExpiresAtMS = p.now().Add(time.Duration(refreshed.ExpiresIn) * time.Second).UnixMilli()

	if err := p.accounts.UpdateCredentials(ctx, account.ID, tokens); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	return tokens.AccessToken, nil
}

// buildRawEmail assembles a minimal RFC 2822 message and encodes it the way
// the Gmail API expects: base64url without padding.
func buildRawEmail(from, to, subject, body string) string {
	lines := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(lines, "\r\n")))
}
