// Package credentials resolves the provider credential set owned by one
// employer. Resolution never crosses tenants: an employer without a complete
// active row gets ErrUnavailable, not someone else's keys.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/staffhooks/internal/metrics"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/repository"
)

// ErrUnavailable covers missing, inactive, incomplete and ambiguous credentials.
var ErrUnavailable = errors.New("credentials unavailable")

type Twilio struct {
	AccountSID          string
	AuthToken           string
	NotifyServiceSID    string
	MessagingServiceSID string
}

type SendGrid struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type Dropbox struct {
	AccessToken string
	RootPath    string
}

type Resolver interface {
	Twilio(ctx context.Context, employerID int64) (Twilio, error)
	SendGrid(ctx context.Context, employerID int64) (SendGrid, error)
	Dropbox(ctx context.Context, employerID int64) (Dropbox, error)
}

// StoreResolver reads tenant_api_keys. SendGrid pairs the global API key with
// the tenant's sender identity.
type StoreResolver struct {
	keys      repository.APIKeysRepository
	employers repository.EmployersRepository

	sendGridAPIKey string
}

var _ Resolver = (*StoreResolver)(nil)

func NewStoreResolver(keys repository.APIKeysRepository, employers repository.EmployersRepository, sendGridAPIKey string) *StoreResolver {
	return &StoreResolver{keys: keys, employers: employers, sendGridAPIKey: strings.TrimSpace(sendGridAPIKey)}
}

func (r *StoreResolver) Twilio(ctx context.Context, employerID int64) (Twilio, error) {
	k, err := r.active(ctx, employerID, model.ProviderTwilio)
	if err != nil {
		return Twilio{}, err
	}
	return Twilio{
		AccountSID:          strings.TrimSpace(k.AccountSID),
		AuthToken:           strings.TrimSpace(k.AuthToken),
		NotifyServiceSID:    strings.TrimSpace(k.NotifyServiceSID),
		MessagingServiceSID: strings.TrimSpace(k.MessagingServiceSID),
	}, nil
}

// SendGrid uses the tenant's active sendgrid row for the sender, falling back
// to the employer's own verified sender address.
func (r *StoreResolver) SendGrid(ctx context.Context, employerID int64) (SendGrid, error) {
	if r.sendGridAPIKey == "" {
		return SendGrid{}, r.unavailable(model.ProviderSendGrid, employerID, "global api key not configured")
	}

	k, err := r.active(ctx, employerID, model.ProviderSendGrid)
	switch {
	case err == nil:
		return SendGrid{
			APIKey:    r.sendGridAPIKey,
			FromEmail: strings.TrimSpace(k.SenderEmail),
			FromName:  strings.TrimSpace(k.SenderName),
		}, nil
	case !errors.Is(err, ErrUnavailable):
		return SendGrid{}, err
	}

	emp, empErr := r.employers.GetByID(ctx, employerID)
	if empErr != nil {
		return SendGrid{}, fmt.Errorf("load employer %d: %w", employerID, empErr)
	}
	if emp == nil || !emp.Active || !emp.SenderVerified || strings.TrimSpace(emp.SenderEmail) == "" {
		return SendGrid{}, err
	}
	return SendGrid{
		APIKey:    r.sendGridAPIKey,
		FromEmail: strings.TrimSpace(emp.SenderEmail),
		FromName:  emp.Name,
	}, nil
}

func (r *StoreResolver) Dropbox(ctx context.Context, employerID int64) (Dropbox, error) {
	k, err := r.active(ctx, employerID, model.ProviderDropbox)
	if err != nil {
		return Dropbox{}, err
	}
	root := strings.TrimRight(strings.TrimSpace(k.RootPath), "/")
	return Dropbox{AccessToken: strings.TrimSpace(k.AccessToken), RootPath: root}, nil
}

func (r *StoreResolver) active(ctx context.Context, employerID int64, p model.Provider) (*model.TenantAPIKey, error) {
	if employerID <= 0 {
		return nil, r.unavailable(p, employerID, "no employer")
	}
	k, err := r.keys.ActiveFor(ctx, employerID, p)
	if errors.Is(err, repository.ErrAmbiguousCredentials) {
		return nil, r.unavailable(p, employerID, "multiple active rows")
	}
	if err != nil {
		return nil, fmt.Errorf("load %s credentials for employer %d: %w", p, employerID, err)
	}
	if k == nil {
		return nil, r.unavailable(p, employerID, "no active row")
	}
	if k.EmployerID != employerID {
		return nil, r.unavailable(p, employerID, "row belongs to another employer")
	}
	if !k.Complete() {
		return nil, r.unavailable(p, employerID, "incomplete row")
	}
	return k, nil
}

func (r *StoreResolver) unavailable(p model.Provider, employerID int64, reason string) error {
	metrics.CredentialsUnavailable.WithLabelValues(p.String()).Inc()
	return fmt.Errorf("%w: %s for employer %d: %s", ErrUnavailable, p, employerID, reason)
}
