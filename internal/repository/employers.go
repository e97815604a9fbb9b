package repository

import (
	"context"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
)

type EmployersRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Employer, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Employer, error)
}

type EmployersRepositoryImpl struct {
	db *sqlx.DB
}

func NewEmployersRepository(db *sqlx.DB) *EmployersRepositoryImpl {
	return &EmployersRepositoryImpl{db: db}
}

var _ EmployersRepository = (*EmployersRepositoryImpl)(nil)

const employerColumns = `id, name, sender_email, sender_verified, api_key, active, rate_limit_rps, created_at, updated_at`

// GetByID returns nil, nil when the employer does not exist.
func (r *EmployersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Employer, error) {
	var e model.Employer
	err := r.db.GetContext(ctx, &e, `SELECT `+employerColumns+` FROM employers WHERE id = ? LIMIT 1`, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EmployersRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Employer, error) {
	var e model.Employer
	err := r.db.GetContext(ctx, &e, `SELECT `+employerColumns+` FROM employers WHERE api_key = ? LIMIT 1`, apiKey)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
