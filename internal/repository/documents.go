package repository

import (
	"context"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
)

type DocumentsRepository interface {
	// InsertProcessed reports created=false when (envelope_id, recipient_email)
	// was already recorded.
	InsertProcessed(ctx context.Context, tx *sqlx.Tx, doc model.ProcessedDocument) (created bool, err error)
}

type DocumentsRepositoryImpl struct {
	db *sqlx.DB
}

func NewDocumentsRepository(db *sqlx.DB) *DocumentsRepositoryImpl {
	return &DocumentsRepositoryImpl{db: db}
}

var _ DocumentsRepository = (*DocumentsRepositoryImpl)(nil)

func (r *DocumentsRepositoryImpl) InsertProcessed(ctx context.Context, tx *sqlx.Tx, doc model.ProcessedDocument) (bool, error) {
	const q = `
		INSERT INTO processed_docusign_documents
		    (envelope_id, recipient_email, template_name, user_id, employer_id, created_at)
		VALUES
		    (?, ?, ?, ?, ?, NOW())
	`
	var created bool
	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			doc.EnvelopeID, doc.RecipientEmail, doc.TemplateName, doc.UserID, doc.EmployerID,
		)
		switch {
		case err == nil:
			created = true
			return nil
		case isDuplicateKey(err):
			return nil
		default:
			return err
		}
	})
	return created, err
}
