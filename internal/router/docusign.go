package router

import (
	"context"
	"time"

	"github.com/jmehdipour/staffhooks/internal/metrics"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/payload"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmehdipour/staffhooks/internal/service/queue"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type DocuSignRouter struct {
	users     repository.UsersRepository
	templates repository.TemplatesRepository
	documents repository.DocumentsRepository
	tx        repository.TxRunner
	queue     queue.Enqueuer
	log       *zap.Logger
}

func NewDocuSignRouter(
	users repository.UsersRepository,
	templates repository.TemplatesRepository,
	documents repository.DocumentsRepository,
	tx repository.TxRunner,
	q queue.Enqueuer,
	log *zap.Logger,
) *DocuSignRouter {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocuSignRouter{users: users, templates: templates, documents: documents, tx: tx, queue: q, log: log}
}

func (r *DocuSignRouter) Route(ctx context.Context, ev payload.DocuSignEvent) model.Result {
	var res model.Result
	switch ev.Kind {
	case payload.DocuSignTemplateSaved:
		res = r.templateSaved(ctx, ev)
	case payload.DocuSignEnvelopeSent:
		res = r.envelopeSent(ctx, ev)
	case payload.DocuSignRecipientCompleted:
		res = r.recipientCompleted(ctx, ev)
	default:
		r.log.Info("docusign event ignored", zap.String("event", ev.Event), zap.String("envelope_id", ev.EnvelopeID))
		res = model.Done(model.ResultIgnored)
	}
	metrics.EventsRouted.WithLabelValues("docusign", ev.Kind.String(), outcome(res)).Inc()
	return res
}

func (r *DocuSignRouter) templateSaved(ctx context.Context, ev payload.DocuSignEvent) model.Result {
	if ev.TemplateID == "" {
		r.log.Warn("templateSaved without template id", zap.String("sender", ev.SenderEmail))
		return model.Done(model.ResultIgnored).With("reason", "missing template id")
	}

	owner, err := r.lookupUser(ctx, ev.SenderEmail)
	if err != nil {
		return model.Errorf("templateSaved %s: %v", ev.TemplateID, err)
	}
	if owner == nil || owner.EmployerID == nil {
		r.log.Warn("templateSaved without employer",
			zap.String("template_id", ev.TemplateID), zap.String("sender", ev.SenderEmail))
		return model.Done(model.ResultIgnored).With("reason", "missing employer")
	}
	employerID := *owner.EmployerID

	exists, err := r.templates.Exists(ctx, ev.TemplateID, employerID)
	if err != nil {
		return model.Errorf("templateSaved %s: %v", ev.TemplateID, err)
	}
	if exists {
		return model.Done(model.ResultDuplicate)
	}

	created, err := r.templates.Insert(ctx, model.DocuSignTemplate{
		TemplateID: ev.TemplateID,
		Name:       ev.TemplateName,
		EmployerID: employerID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return model.Errorf("templateSaved %s: %v", ev.TemplateID, err)
	}
	if !created {
		return model.Done(model.ResultDuplicate)
	}

	r.log.Info("docusign template stored", zap.String("template_id", ev.TemplateID), zap.Int64("employer_id", employerID))
	return model.Done(model.ResultProcessed)
}

func (r *DocuSignRouter) envelopeSent(ctx context.Context, ev payload.DocuSignEvent) model.Result {
	if err := ev.Validate(); err != nil {
		return r.invalid(ev, err)
	}

	att, err := r.attribute(ctx, ev)
	if err != nil {
		return model.Errorf("envelope-sent %s: %v", ev.EnvelopeID, err)
	}
	if att.employerID == nil {
		r.log.Warn("envelope-sent without employer", zap.String("envelope_id", ev.EnvelopeID), zap.String("recipient", ev.RecipientEmail()))
		return model.Done(model.ResultIgnored).With("reason", "unattributed")
	}

	task, err := model.NewTask(model.TaskNotifyHR, model.NotifyHRPayload{
		EmployerID:     *att.employerID,
		Stage:          model.DocumentSent,
		EnvelopeID:     ev.EnvelopeID,
		RecipientEmail: ev.RecipientEmail(),
		RecipientName:  att.recipientName(ev),
		TemplateName:   r.templateName(ctx, ev.TemplateID),
	})
	if err != nil {
		return model.Errorf("envelope-sent %s: %v", ev.EnvelopeID, err)
	}
	if err := r.queue.Enqueue(ctx, nil, task); err != nil {
		return model.Errorf("envelope-sent %s: enqueue: %v", ev.EnvelopeID, err)
	}
	return model.Done(model.ResultProcessed).With("enqueued", []string{task.Kind.String()})
}

// recipientCompleted records the document and schedules its follow-ups in one
// transaction. A replay hits the unique key and schedules nothing.
func (r *DocuSignRouter) recipientCompleted(ctx context.Context, ev payload.DocuSignEvent) model.Result {
	if err := ev.Validate(); err != nil {
		return r.invalid(ev, err)
	}

	att, err := r.attribute(ctx, ev)
	if err != nil {
		return model.Errorf("recipient-completed %s: %v", ev.EnvelopeID, err)
	}
	name := r.templateName(ctx, ev.TemplateID)

	doc := model.ProcessedDocument{
		EnvelopeID:     ev.EnvelopeID,
		RecipientEmail: ev.RecipientEmail(),
		TemplateName:   name,
		EmployerID:     att.employerID,
		CreatedAt:      time.Now().UTC(),
	}
	if att.user != nil {
		doc.UserID = &att.user.ID
	}

	var tasks []model.Task
	if att.employerID != nil {
		fetch, err := model.NewTask(model.TaskDocumentFetch, model.DocumentFetchPayload{
			EmployerID:     *att.employerID,
			EnvelopeID:     ev.EnvelopeID,
			RecipientEmail: doc.RecipientEmail,
			UserID:         doc.UserID,
			TemplateName:   name,
		})
		if err != nil {
			return model.Errorf("recipient-completed %s: %v", ev.EnvelopeID, err)
		}
		notify, err := model.NewTask(model.TaskNotifyHR, model.NotifyHRPayload{
			EmployerID:     *att.employerID,
			Stage:          model.DocumentCompleted,
			EnvelopeID:     ev.EnvelopeID,
			RecipientEmail: doc.RecipientEmail,
			RecipientName:  att.recipientName(ev),
			TemplateName:   name,
		})
		if err != nil {
			return model.Errorf("recipient-completed %s: %v", ev.EnvelopeID, err)
		}
		tasks = append(tasks, fetch, notify)
	} else {
		r.log.Warn("recipient-completed without employer; recorded only",
			zap.String("envelope_id", ev.EnvelopeID), zap.String("recipient", doc.RecipientEmail))
	}

	duplicate := false
	err = r.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		created, err := r.documents.InsertProcessed(ctx, tx, doc)
		if err != nil {
			return err
		}
		if !created {
			duplicate = true
			return nil
		}
		for _, t := range tasks {
			if err := r.queue.Enqueue(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Errorf("recipient-completed %s: %v", ev.EnvelopeID, err)
	}
	if duplicate {
		r.log.Info("recipient-completed replay ignored", zap.String("envelope_id", ev.EnvelopeID), zap.String("recipient", doc.RecipientEmail))
		return model.Done(model.ResultDuplicate)
	}

	kinds := make([]string, 0, len(tasks))
	for _, t := range tasks {
		kinds = append(kinds, t.Kind.String())
	}
	return model.Done(model.ResultProcessed).With("enqueued", kinds)
}

func (r *DocuSignRouter) invalid(ev payload.DocuSignEvent, err error) model.Result {
	r.log.Error("docusign event rejected", zap.String("event", ev.Event), zap.String("envelope_id", ev.EnvelopeID), zap.Error(err))
	return model.Errorf("%s: %v", ev.Kind, err)
}

type attribution struct {
	user       *model.User
	employerID *int64
}

func (a attribution) recipientName(ev payload.DocuSignEvent) string {
	if n := ev.RecipientName(); n != "" {
		return n
	}
	if a.user != nil {
		return a.user.DisplayName()
	}
	return ""
}

// attribute resolves the recipient's user. The employer is the recipient's,
// or the sender's when the recipient is not one of our users.
func (r *DocuSignRouter) attribute(ctx context.Context, ev payload.DocuSignEvent) (attribution, error) {
	var a attribution

	u, err := r.lookupUser(ctx, ev.RecipientEmail())
	if err != nil {
		return a, err
	}
	if u == nil {
		r.log.Warn("docusign recipient is not a user", zap.String("email", ev.RecipientEmail()), zap.String("envelope_id", ev.EnvelopeID))
	} else {
		a.user = u
		a.employerID = u.EmployerID
	}

	if a.employerID == nil && ev.SenderEmail != "" && ev.SenderEmail != ev.RecipientEmail() {
		sender, err := r.lookupUser(ctx, ev.SenderEmail)
		if err != nil {
			return a, err
		}
		if sender != nil {
			a.employerID = sender.EmployerID
		}
	}
	return a, nil
}

func (r *DocuSignRouter) lookupUser(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}
	return r.users.GetByEmail(ctx, email)
}

// templateName is a best-effort lookup; nil when the template is unknown.
func (r *DocuSignRouter) templateName(ctx context.Context, templateID string) *string {
	if templateID == "" {
		return nil
	}
	name, ok, err := r.templates.NameByTemplateID(ctx, templateID)
	if err != nil {
		r.log.Warn("template name lookup failed", zap.String("template_id", templateID), zap.Error(err))
		return nil
	}
	if !ok || name == "" {
		return nil
	}
	return &name
}

func outcome(r model.Result) string {
	if r.Failed() {
		return "error"
	}
	return r.Status
}
