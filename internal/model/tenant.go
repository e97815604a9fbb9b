package model

import (
	"strings"
	"time"
)

// Provider names a third-party integration a tenant can hold credentials for.
type Provider string

const (
	ProviderTwilio   Provider = "twilio"
	ProviderSendGrid Provider = "sendgrid"
	ProviderDropbox  Provider = "dropbox"
)

func (p Provider) String() string { return string(p) }

func (p Provider) Valid() bool {
	return p == ProviderTwilio || p == ProviderSendGrid || p == ProviderDropbox
}

// Employer is the tenant boundary for credentials and notification audiences.
type Employer struct {
	ID             int64     `db:"id"`
	Name           string    `db:"name"`
	SenderEmail    string    `db:"sender_email"`
	SenderVerified bool      `db:"sender_verified"`
	APIKey         string    `db:"api_key"`
	Active         bool      `db:"active"`
	RateLimitRPS   *int      `db:"rate_limit_rps"` // nullable
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// TenantAPIKey holds one provider credential set for an employer. At most one
// row per (employer_id, provider) is active.
type TenantAPIKey struct {
	ID         int64    `db:"id"`
	EmployerID int64    `db:"employer_id"`
	Provider   Provider `db:"provider"`
	Active     bool     `db:"active"`

	// twilio
	AccountSID          string `db:"account_sid"`
	AuthToken           string `db:"auth_token"`
	NotifyServiceSID    string `db:"notify_service_sid"`
	MessagingServiceSID string `db:"messaging_service_sid"`

	// sendgrid
	SenderEmail string `db:"sender_email"`
	SenderName  string `db:"sender_name"`

	// dropbox
	AccessToken string `db:"access_token"`
	RootPath    string `db:"root_path"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Complete reports whether every field the provider needs is present.
func (k TenantAPIKey) Complete() bool {
	switch k.Provider {
	case ProviderTwilio:
		return notBlank(k.AccountSID, k.AuthToken, k.MessagingServiceSID)
	case ProviderSendGrid:
		return notBlank(k.SenderEmail)
	case ProviderDropbox:
		return notBlank(k.AccessToken)
	default:
		return false
	}
}

func notBlank(vals ...string) bool {
	for _, v := range vals {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
