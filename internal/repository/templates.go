package repository

import (
	"context"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
)

type TemplatesRepository interface {
	Exists(ctx context.Context, templateID string, employerID int64) (bool, error)
	Insert(ctx context.Context, t model.DocuSignTemplate) (created bool, err error)
	// NameByTemplateID returns "", false when the template is unknown.
	NameByTemplateID(ctx context.Context, templateID string) (string, bool, error)
}

type TemplatesRepositoryImpl struct {
	db *sqlx.DB
}

func NewTemplatesRepository(db *sqlx.DB) *TemplatesRepositoryImpl {
	return &TemplatesRepositoryImpl{db: db}
}

var _ TemplatesRepository = (*TemplatesRepositoryImpl)(nil)

func (r *TemplatesRepositoryImpl) Exists(ctx context.Context, templateID string, employerID int64) (bool, error) {
	var one int
	err := r.db.QueryRowxContext(ctx,
		`SELECT 1 FROM docusign_templates WHERE template_id = ? AND employer_id = ? LIMIT 1`,
		templateID, employerID,
	).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert relies on the unique (template_id, employer_id) key to absorb a
// concurrent insert that raced past Exists.
func (r *TemplatesRepositoryImpl) Insert(ctx context.Context, t model.DocuSignTemplate) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO docusign_templates (template_id, name, employer_id, created_at)
		VALUES (?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE id = id
	`, t.TemplateID, t.Name, t.EmployerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *TemplatesRepositoryImpl) NameByTemplateID(ctx context.Context, templateID string) (string, bool, error) {
	var name string
	err := r.db.GetContext(ctx, &name,
		`SELECT name FROM docusign_templates WHERE template_id = ? ORDER BY id LIMIT 1`, templateID)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}
