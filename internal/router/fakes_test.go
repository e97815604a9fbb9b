package router

import (
	"context"
	"errors"
	"sync"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
)

type memUsers struct {
	byEmail map[string]*model.User
	byPhone map[string]*model.User
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.byEmail[email], nil
}

func (m *memUsers) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	return m.byPhone[phone], nil
}

func (m *memUsers) ListByGroup(context.Context, int64, string) ([]model.User, error) {
	return nil, nil
}

type templateKey struct {
	id       string
	employer int64
}

type memTemplates struct {
	mu   sync.Mutex
	rows map[templateKey]model.DocuSignTemplate
}

func newMemTemplates() *memTemplates {
	return &memTemplates{rows: map[templateKey]model.DocuSignTemplate{}}
}

func (m *memTemplates) Exists(_ context.Context, id string, employerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[templateKey{id, employerID}]
	return ok, nil
}

func (m *memTemplates) Insert(_ context.Context, t model.DocuSignTemplate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := templateKey{t.TemplateID, t.EmployerID}
	if _, ok := m.rows[k]; ok {
		return false, nil
	}
	m.rows[k] = t
	return true, nil
}

func (m *memTemplates) NameByTemplateID(_ context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.rows {
		if k.id == id {
			return t.Name, true, nil
		}
	}
	return "", false, nil
}

type memDocuments struct {
	rows []model.ProcessedDocument
}

func (m *memDocuments) InsertProcessed(_ context.Context, _ *sqlx.Tx, doc model.ProcessedDocument) (bool, error) {
	for _, r := range m.rows {
		if r.EnvelopeID == doc.EnvelopeID && r.RecipientEmail == doc.RecipientEmail {
			return false, nil
		}
	}
	m.rows = append(m.rows, doc)
	return true, nil
}

type memLogs struct {
	emails   []model.EmailEvent
	messages []model.WhatsAppMessage
	failOn   map[string]bool
}

func (m *memLogs) InsertEmailEvent(_ context.Context, ev model.EmailEvent) error {
	if m.failOn[ev.Email] {
		return errors.New("insert failed")
	}
	m.emails = append(m.emails, ev)
	return nil
}

func (m *memLogs) InsertWhatsAppMessage(_ context.Context, msg model.WhatsAppMessage) error {
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memLogs) InsertSmsLogBatch(context.Context, []model.SmsLog) error { return nil }

type directTx struct{}

func (directTx) InTx(_ context.Context, fn func(*sqlx.Tx) error) error { return fn(nil) }

type recQueue struct {
	tasks []model.Task
	err   error
}

func (q *recQueue) Enqueue(_ context.Context, _ *sqlx.Tx, t model.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *recQueue) kinds() []model.TaskKind {
	out := make([]model.TaskKind, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Kind)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
