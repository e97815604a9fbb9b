package repository

import (
	"context"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
)

type UsersRepository interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	ListByGroup(ctx context.Context, employerID int64, group string) ([]model.User, error)
}

type UsersRepositoryImpl struct {
	db *sqlx.DB
}

func NewUsersRepository(db *sqlx.DB) *UsersRepositoryImpl {
	return &UsersRepositoryImpl{db: db}
}

var _ UsersRepository = (*UsersRepositoryImpl)(nil)

const userColumns = `u.id, u.username, u.email, u.phone, u.first_name, u.last_name, u.employer_id, u.active, u.created_at`

// GetByEmail matches the address exactly (stored lower-cased). nil, nil when absent.
func (r *UsersRepositoryImpl) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users u WHERE u.email = ? LIMIT 1`, email)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByPhone expects an E.164 number (see util.NormalizePhone).
func (r *UsersRepositoryImpl) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users u WHERE u.phone = ? LIMIT 1`, phone)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListByGroup returns the active members of group within one employer.
func (r *UsersRepositoryImpl) ListByGroup(ctx context.Context, employerID int64, group string) ([]model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		  FROM users u
		  JOIN user_groups g ON g.user_id = u.id
		 WHERE u.employer_id = ? AND g.group_name = ? AND u.active = 1
		 ORDER BY u.id
	`, employerID, group)
	if err != nil {
		return nil, err
	}
	return users, nil
}
