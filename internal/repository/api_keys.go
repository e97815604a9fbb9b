package repository

import (
	"context"
	"errors"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
)

// ErrAmbiguousCredentials is returned when more than one row is active for
// the same (employer, provider).
var ErrAmbiguousCredentials = errors.New("more than one active credential row")

type APIKeysRepository interface {
	// ActiveFor returns nil, nil when the employer has no active row for provider.
	ActiveFor(ctx context.Context, employerID int64, provider model.Provider) (*model.TenantAPIKey, error)
}

type APIKeysRepositoryImpl struct {
	db *sqlx.DB
}

func NewAPIKeysRepository(db *sqlx.DB) *APIKeysRepositoryImpl {
	return &APIKeysRepositoryImpl{db: db}
}

var _ APIKeysRepository = (*APIKeysRepositoryImpl)(nil)

func (r *APIKeysRepositoryImpl) ActiveFor(ctx context.Context, employerID int64, provider model.Provider) (*model.TenantAPIKey, error) {
	var rows []model.TenantAPIKey
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, employer_id, provider, active,
		       account_sid, auth_token, notify_service_sid, messaging_service_sid,
		       sender_email, sender_name, access_token, root_path,
		       created_at, updated_at
		  FROM tenant_api_keys
		 WHERE employer_id = ? AND provider = ? AND active = 1
		 LIMIT 2
	`, employerID, provider.String())
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		return nil, ErrAmbiguousCredentials
	}
}
