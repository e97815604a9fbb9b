package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

type MockEmployers struct{ mock.Mock }

func (m *MockEmployers) GetByID(ctx context.Context, id int64) (*model.Employer, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*model.Employer)
	return e, args.Error(1)
}

func (m *MockEmployers) GetByAPIKey(ctx context.Context, key string) (*model.Employer, error) {
	args := m.Called(ctx, key)
	e, _ := args.Get(0).(*model.Employer)
	return e, args.Error(1)
}

type MockUsers struct{ mock.Mock }

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUsers) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	args := m.Called(ctx, phone)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUsers) ListByGroup(ctx context.Context, employerID int64, group string) ([]model.User, error) {
	args := m.Called(ctx, employerID, group)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

type MockEmailEvents struct{ mock.Mock }

func (m *MockEmailEvents) ListByEmployer(ctx context.Context, employerID int64, email, event string, limit, offset int) ([]model.EmailEvent, error) {
	args := m.Called(ctx, employerID, email, event, limit, offset)
	evs, _ := args.Get(0).([]model.EmailEvent)
	return evs, args.Error(1)
}

type env struct {
	queue     *recQueue
	employers *MockEmployers
	users     *MockUsers
	events    *MockEmailEvents
	srv       *Server
}

func newEnv() *env {
	e := &env{queue: &recQueue{}, employers: &MockEmployers{}, users: &MockUsers{}, events: &MockEmailEvents{}}
	e.srv = newServer(Deps{Queue: e.queue, Employers: e.employers, Users: e.users, EmailEvents: e.events})
	return e
}

func (e *env) do(method, path, contentType, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.e.ServeHTTP(rec, req)
	return rec
}

func TestSendGridHookRejectsInvalidJSON(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodPost, "/sendgrid_hook/", "application/json", `[{"email": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Invalid JSON payload"}`, rec.Body.String())
	assert.Empty(t, e.queue.tasks)
}

func TestSendGridHookRejectsGET(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodGet, "/sendgrid_hook/", "", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, e.queue.tasks)
}

func TestSendGridHookEnqueuesRawBody(t *testing.T) {
	e := newEnv()
	body := `[{"email":"a@x.com","event":"open"},{"email":"b@x.com","event":"click"}]`
	rec := e.do(http.MethodPost, "/sendgrid_hook/", "application/json", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "Webhook received successfully"}`, rec.Body.String())
	require.Len(t, e.queue.tasks, 1)
	assert.Equal(t, model.TaskSendGridWebhook, e.queue.tasks[0].Kind)
	assert.JSONEq(t, body, string(e.queue.tasks[0].Payload))
}

func TestSendGridHookEnqueueFailure(t *testing.T) {
	e := newEnv()
	e.queue.err = errors.New("db down")
	rec := e.do(http.MethodPost, "/sendgrid_hook/", "application/json", `[]`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDocuSignHook(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodPost, "/docusign-webhook/", "application/json", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Invalid JSON payload"}`, rec.Body.String())

	rec = e.do(http.MethodPost, "/docusign-webhook/", "application/json", `{"event":"recipient-completed","data":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.queue.tasks)

	rec = e.do(http.MethodPost, "/docusign-webhook/", "application/json",
		`{"event":"recipient-completed","data":{"envelopeId":"env-1","sender":{"email":"hr@acme.com"}}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "received"}`, rec.Body.String())
	require.Len(t, e.queue.tasks, 1)
	assert.Equal(t, model.TaskDocuSignWebhook, e.queue.tasks[0].Kind)

	rec = e.do(http.MethodPut, "/docusign-webhook/", "application/json", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWhatsAppHook(t *testing.T) {
	e := newEnv()
	form := url.Values{"SmsMessageSid": {"SM1"}, "From": {"whatsapp:+15550001111"}, "Body": {"hi"}}

	rec := e.do(http.MethodPost, "/webhook/whatsapp/", "application/x-www-form-urlencoded", form.Encode())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "success"}`, rec.Body.String())
	require.Len(t, e.queue.tasks, 1)

	var got url.Values
	require.NoError(t, json.Unmarshal(e.queue.tasks[0].Payload, &got))
	assert.Equal(t, "whatsapp:+15550001111", got.Get("From"))
	assert.Equal(t, "SM1", got.Get("SmsMessageSid"))
}

func TestCampaignRequiresAPIKey(t *testing.T) {
	e := newEnv()
	rec := e.do(http.MethodPost, "/v1/campaigns/sms", "application/json", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	e.employers.On("GetByAPIKey", mock.Anything, "bad").Return(nil, nil)
	rec = e.do(http.MethodPost, "/v1/campaigns/sms", "application/json", `{}`, "X-API-Key", "bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	e.employers.On("GetByAPIKey", mock.Anything, "off").Return(&model.Employer{ID: 3, Active: false}, nil)
	rec = e.do(http.MethodPost, "/v1/campaigns/sms", "application/json", `{}`, "X-API-Key", "off")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSMSCampaignEnqueues(t *testing.T) {
	e := newEnv()
	e.employers.On("GetByAPIKey", mock.Anything, "k1").Return(&model.Employer{ID: 7, Active: true}, nil)

	rec := e.do(http.MethodPost, "/v1/campaigns/sms", "application/json",
		`{"recipients":["(555) 000-1111","nope",""],"body":"Inventory tonight"}`, "X-API-Key", "k1")

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, e.queue.tasks, 1)
	var p model.BulkSMSPayload
	require.NoError(t, e.queue.tasks[0].Decode(&p))
	assert.Equal(t, int64(7), p.EmployerID)
	assert.Equal(t, []string{"+15550001111"}, p.Recipients)
}

func TestSMSCampaignValidation(t *testing.T) {
	e := newEnv()
	e.employers.On("GetByAPIKey", mock.Anything, "k1").Return(&model.Employer{ID: 7, Active: true}, nil)

	rec := e.do(http.MethodPost, "/v1/campaigns/sms", "application/json", `{"recipients":["+15550001111"]}`, "X-API-Key", "k1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/v1/campaigns/sms", "application/json", `{"recipients":["abc"],"body":"x"}`, "X-API-Key", "k1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.queue.tasks)
}

func TestEmailCampaignByGroup(t *testing.T) {
	e := newEnv()
	e.employers.On("GetByAPIKey", mock.Anything, "k1").Return(&model.Employer{ID: 7, Active: true}, nil)
	e.users.On("ListByGroup", mock.Anything, int64(7), "managers").
		Return([]model.User{{Email: "M1@acme.com"}, {Email: ""}}, nil)

	rec := e.do(http.MethodPost, "/v1/campaigns/email", "application/json",
		`{"group":"managers","subject":"Audit","html":"<p>Friday</p>","attachment_urls":["https://files/x.pdf"]}`, "X-API-Key", "k1")

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var p model.BulkEmailPayload
	require.NoError(t, e.queue.tasks[0].Decode(&p))
	assert.Equal(t, []string{"m1@acme.com"}, p.Recipients)
	assert.Equal(t, []string{"https://files/x.pdf"}, p.AttachmentURLs)
	e.users.AssertExpectations(t)
}

func TestEmailEventsReport(t *testing.T) {
	e := newEnv()
	e.employers.On("GetByAPIKey", mock.Anything, "k1").Return(&model.Employer{ID: 7, Active: true}, nil)
	e.events.On("ListByEmployer", mock.Anything, int64(7), "a@x.com", "open", 10, 0).
		Return([]model.EmailEvent{{Email: "a@x.com", Event: "open"}}, nil)

	rec := e.do(http.MethodGet, "/v1/reports/email-events?email=A@x.com&event=open&limit=10", "", "", "X-API-Key", "k1")

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Count int `json:"count"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, 10, out.Limit)
	e.events.AssertExpectations(t)
}

func TestHealthz(t *testing.T) {
	rec := newEnv().do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
