package router

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	users     *memUsers
	templates *memTemplates
	documents *memDocuments
	logs      *memLogs
	queue     *recQueue
	router    *Router
}

func newFixture() *fixture {
	f := &fixture{
		users: &memUsers{
			byEmail: map[string]*model.User{
				"jane@acme.com": {ID: 10, Username: "jane", Email: "jane@acme.com", FirstName: "Jane", EmployerID: ptr(int64(1))},
				"hr@acme.com":   {ID: 11, Username: "hrlead", Email: "hr@acme.com", EmployerID: ptr(int64(1))},
			},
			byPhone: map[string]*model.User{
				"+15550001111": {ID: 10, Username: "jane"},
			},
		},
		templates: newMemTemplates(),
		documents: &memDocuments{},
		logs:      &memLogs{},
		queue:     &recQueue{},
	}
	f.router = &Router{
		DocuSign: NewDocuSignRouter(f.users, f.templates, f.documents, directTx{}, f.queue, nil),
		SendGrid: NewSendGridRouter(f.users, f.logs, nil),
		WhatsApp: NewWhatsAppRouter(f.users, f.logs, nil),
	}
	return f
}

func task(t *testing.T, kind model.TaskKind, body any) model.Task {
	t.Helper()
	tk, err := model.NewTask(kind, body)
	require.NoError(t, err)
	return tk
}

func TestSendGridStoresEveryEvent(t *testing.T) {
	f := newFixture()
	body := []byte(`[
		{"email":"jane@acme.com","event":"delivered","timestamp":1700000000},
		{"email":"ghost@nowhere.com","event":"open","timestamp":0},
		{"email":"","event":"bounce"}
	]`)

	r := f.router.Handle(context.Background(), task(t, model.TaskSendGridWebhook, body))

	assert.Equal(t, model.ResultProcessed, r.Status)
	require.Len(t, f.logs.emails, 3)
	assert.Equal(t, "jane", f.logs.emails[0].Username)
	assert.Equal(t, int64(10), *f.logs.emails[0].UserID)
	assert.NotNil(t, f.logs.emails[0].OccurredAt)
	assert.Equal(t, model.UnknownUsername, f.logs.emails[1].Username)
	assert.Nil(t, f.logs.emails[1].UserID)
	assert.Nil(t, f.logs.emails[1].OccurredAt)
}

func TestSendGridUnreadableTimestampStillStored(t *testing.T) {
	f := newFixture()
	body := []byte(`[
		{"email":"jane@acme.com","event":"delivered","timestamp":1700000000},
		{"email":"jane@acme.com","event":"open","timestamp":"n/a"}
	]`)

	r := f.router.Handle(context.Background(), task(t, model.TaskSendGridWebhook, body))

	assert.Equal(t, model.ResultProcessed, r.Status)
	require.Len(t, f.logs.emails, 2)
	assert.NotNil(t, f.logs.emails[0].OccurredAt)
	assert.Nil(t, f.logs.emails[1].OccurredAt)
}

func TestSendGridMalformedElementIsPartial(t *testing.T) {
	f := newFixture()
	body := []byte(`[{"email":"jane@acme.com","event":"open"}, "junk"]`)

	r := f.router.Handle(context.Background(), task(t, model.TaskSendGridWebhook, body))

	assert.Equal(t, model.ResultPartial, r.Status)
	assert.Equal(t, 1, r.Detail["malformed"])
	assert.Len(t, f.logs.emails, 1)
}

func TestSendGridFailureDoesNotStopBatch(t *testing.T) {
	f := newFixture()
	f.logs.failOn = map[string]bool{"b@x.com": true}

	r := f.router.SendGrid.Route(context.Background(), []payload.SendGridEvent{
		{Email: "a@x.com", Event: "delivered"},
		{Email: "b@x.com", Event: "delivered"},
		{Email: "c@x.com", Event: "delivered"},
	})

	assert.Equal(t, model.ResultPartial, r.Status)
	assert.Equal(t, 2, r.Detail["stored"])
	assert.Equal(t, 1, r.Detail["failed"])
	assert.Len(t, f.logs.emails, 2)
}

func TestSendGridInvalidJSONTask(t *testing.T) {
	f := newFixture()
	r := f.router.Handle(context.Background(), model.Task{Kind: model.TaskSendGridWebhook, Payload: []byte(`{`)})
	assert.True(t, r.Failed())
	assert.Empty(t, f.logs.emails)
}

func completed(signerEmail, senderEmail string) []byte {
	body := map[string]any{
		"event": "recipient-completed",
		"data": map[string]any{
			"envelopeId": "env-1",
			"templateId": "tpl-1",
			"envelopeSummary": map[string]any{
				"recipients": map[string]any{
					"signers": []map[string]string{{"email": signerEmail, "name": "Jane Doe"}},
				},
			},
			"sender": map[string]string{"email": senderEmail, "userName": "HR Lead"},
		},
	}
	b, _ := json.Marshal(body)
	return b
}

func TestRecipientCompletedResolvesSigner(t *testing.T) {
	f := newFixture()
	f.templates.rows[templateKey{"tpl-1", 1}] = model.DocuSignTemplate{TemplateID: "tpl-1", Name: "Offer Letter", EmployerID: 1}

	r := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, completed("Jane@Acme.com", "hr@acme.com")))

	assert.Equal(t, model.ResultProcessed, r.Status)
	require.Len(t, f.documents.rows, 1)
	doc := f.documents.rows[0]
	assert.Equal(t, "jane@acme.com", doc.RecipientEmail)
	assert.Equal(t, int64(10), *doc.UserID)
	assert.Equal(t, int64(1), *doc.EmployerID)
	assert.Equal(t, "Offer Letter", *doc.TemplateName)
	assert.ElementsMatch(t, []model.TaskKind{model.TaskDocumentFetch, model.TaskNotifyHR}, f.queue.kinds())

	var notify model.NotifyHRPayload
	for _, tk := range f.queue.tasks {
		if tk.Kind == model.TaskNotifyHR {
			require.NoError(t, tk.Decode(&notify))
		}
	}
	assert.Equal(t, model.DocumentCompleted, notify.Stage)
	assert.Equal(t, "Jane Doe", notify.RecipientName)
}

func TestRecipientCompletedFallsBackToSender(t *testing.T) {
	f := newFixture()

	r := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, completed("", "hr@acme.com")))

	assert.Equal(t, model.ResultProcessed, r.Status)
	require.Len(t, f.documents.rows, 1)
	assert.Equal(t, "hr@acme.com", f.documents.rows[0].RecipientEmail)
	assert.Equal(t, int64(11), *f.documents.rows[0].UserID)
	assert.Nil(t, f.documents.rows[0].TemplateName)
}

func TestRecipientCompletedWithoutRecipientIsAnError(t *testing.T) {
	f := newFixture()

	r := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, completed("", "")))

	require.True(t, r.Failed())
	assert.Contains(t, r.Error, payload.ErrMissingRecipient.Error())
	assert.Empty(t, f.documents.rows)
	assert.Empty(t, f.queue.tasks)
}

func TestRecipientCompletedReplayIsDeduplicated(t *testing.T) {
	f := newFixture()
	body := completed("jane@acme.com", "hr@acme.com")

	first := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, body))
	second := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, body))

	assert.Equal(t, model.ResultProcessed, first.Status)
	assert.Equal(t, model.ResultDuplicate, second.Status)
	assert.Len(t, f.documents.rows, 1)
	assert.Len(t, f.queue.tasks, 2)
}

func TestRecipientCompletedUnknownUserIsRecordedOnly(t *testing.T) {
	f := newFixture()

	r := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, completed("outsider@x.com", "nobody@x.com")))

	assert.Equal(t, model.ResultProcessed, r.Status)
	require.Len(t, f.documents.rows, 1)
	assert.Nil(t, f.documents.rows[0].UserID)
	assert.Nil(t, f.documents.rows[0].EmployerID)
	assert.Empty(t, f.queue.tasks)
}

func TestTemplateSavedTwiceStoresOneRow(t *testing.T) {
	f := newFixture()
	body := []byte(`{"event":"templateSaved","data":{"templateId":"tpl-9","templateName":"NDA","sender":{"email":"hr@acme.com"}}}`)

	first := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, body))
	second := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, body))

	assert.Equal(t, model.ResultProcessed, first.Status)
	assert.Equal(t, model.ResultDuplicate, second.Status)
	require.Len(t, f.templates.rows, 1)
	assert.Equal(t, "NDA", f.templates.rows[templateKey{"tpl-9", 1}].Name)
}

func TestTemplateSavedWithoutIDsIsNoop(t *testing.T) {
	f := newFixture()

	r := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, []byte(`{"event":"templateSaved","data":{"sender":{"email":"hr@acme.com"}}}`)))
	assert.Equal(t, model.ResultIgnored, r.Status)

	r = f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, []byte(`{"event":"templateSaved","data":{"templateId":"tpl-2","sender":{"email":"stranger@x.com"}}}`)))
	assert.Equal(t, model.ResultIgnored, r.Status)
	assert.Empty(t, f.templates.rows)
}

func TestEnvelopeSentNotifiesHR(t *testing.T) {
	f := newFixture()
	body := []byte(`{"event":"envelope-sent","data":{"envelopeId":"env-7","templateId":"tpl-unknown",
		"envelopeSummary":{"recipients":{"signers":[{"email":"jane@acme.com"}]}}}}`)

	r := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, body))

	assert.Equal(t, model.ResultProcessed, r.Status)
	require.Len(t, f.queue.tasks, 1)
	var p model.NotifyHRPayload
	require.NoError(t, f.queue.tasks[0].Decode(&p))
	assert.Equal(t, model.DocumentSent, p.Stage)
	assert.Equal(t, int64(1), p.EmployerID)
	assert.Nil(t, p.TemplateName)
	assert.Equal(t, "Jane", p.RecipientName)
}

func TestOtherDocuSignEventsAreIgnored(t *testing.T) {
	f := newFixture()
	r := f.router.Handle(context.Background(), task(t, model.TaskDocuSignWebhook, []byte(`{"event":"envelope-voided","data":{"envelopeId":"e"}}`)))
	assert.Equal(t, model.ResultIgnored, r.Status)
	assert.Empty(t, f.queue.tasks)
}

func TestWhatsAppInboundAndStatus(t *testing.T) {
	f := newFixture()

	inbound := url.Values{"SmsMessageSid": {"SM1"}, "From": {"whatsapp:+15550001111"}, "To": {"whatsapp:+15559990000"}, "Body": {"hi"}}
	status := url.Values{"MessageSid": {"SM2"}, "MessageStatus": {"delivered"}, "From": {"whatsapp:+15559990000"}, "To": {"whatsapp:+15552223333"}}

	r1 := f.router.Handle(context.Background(), task(t, model.TaskWhatsAppWebhook, inbound))
	r2 := f.router.Handle(context.Background(), task(t, model.TaskWhatsAppWebhook, status))

	assert.Equal(t, model.ResultProcessed, r1.Status)
	assert.Equal(t, model.ResultProcessed, r2.Status)
	require.Len(t, f.logs.messages, 2)

	assert.Equal(t, model.MessageInbound, f.logs.messages[0].Kind)
	assert.Equal(t, "+15550001111", f.logs.messages[0].FromNumber)
	assert.Equal(t, "whatsapp", f.logs.messages[0].Channel)
	assert.Equal(t, "jane", f.logs.messages[0].Username)

	assert.Equal(t, model.MessageStatus, f.logs.messages[1].Kind)
	assert.Equal(t, "delivered", f.logs.messages[1].Status)
	assert.Equal(t, model.UnknownContact, f.logs.messages[1].Username)
}

func TestUnsupportedTaskKind(t *testing.T) {
	f := newFixture()
	r := f.router.Handle(context.Background(), model.Task{Kind: model.TaskBulkSMS})
	assert.True(t, r.Failed())
}
