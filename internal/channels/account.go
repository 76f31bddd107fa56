package channels

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AccountType is the notification transport category an account serves.
type AccountType string

const (
	AccountTypeEmail AccountType = "EMAIL"
	AccountTypeSMS   AccountType = "SMS"
)

// Provider identifiers stored on channel accounts.
const (
	ProviderGoogle = "google"
	ProviderSMTP   = "smtp"
	ProviderTwilio = "twilio"
	ProviderMock   = "mock"
)

// Account is a workspace's configured connection for sending on a channel.
// Config is a provider-specific credential blob; decode it with the typed
// credential structs below rather than poking at raw JSON.
type Account struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Type        AccountType
	Provider    string
	IsActive    bool
	// FromNumber is the sending number for SMS accounts, denormalized out
	// of the config blob so inbound webhooks can match on it.
	FromNumber string
	Config     json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GoogleTokens is the credential blob for a Gmail-connected EMAIL account.
// ExpiresAtMS is epoch milliseconds, matching what the OAuth callback stores.
type GoogleTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAtMS  int64  `json:"expiresAt"`
	Email        string `json:"email"`
}

// ExpiresWithin reports whether the access token expires before now+margin.
func (t GoogleTokens) ExpiresWithin(now time.Time, margin time.Duration) bool {
	expiry := time.UnixMilli(t.ExpiresAtMS)
	return !now.Add(margin).Before(expiry)
}

// TwilioCredentials is the credential blob for a Twilio SMS account, and also
// the shape of the injected process-wide fallback.
type TwilioCredentials struct {
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
	FromNumber string `json:"fromNumber"`
}

// Complete reports whether all fields required for sending are present.
func (c TwilioCredentials) Complete() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// SMTPCredentials is the credential blob for a tenant-SMTP EMAIL account.
type SMTPCredentials struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"fromAddress"`
	FromName    string `json:"fromName"`
}

// DecodeGoogleTokens parses the account config as Gmail OAuth tokens.
func (a *Account) DecodeGoogleTokens() (GoogleTokens, error) {
	var tokens GoogleTokens
	err := json.Unmarshal(a.Config, &tokens)
	return tokens, err
}

// DecodeTwilioCredentials parses the account config as Twilio credentials.
func (a *Account) DecodeTwilioCredentials() (TwilioCredentials, error) {
	var creds TwilioCredentials
	err := json.Unmarshal(a.Config, &creds)
	return creds, err
}

// DecodeSMTPCredentials parses the account config as SMTP credentials.
func (a *Account) DecodeSMTPCredentials() (SMTPCredentials, error) {
	var creds SMTPCredentials
	err := json.Unmarshal(a.Config, &creds)
	return creds, err
}
