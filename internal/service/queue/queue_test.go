package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jmehdipour/staffhooks/internal/kafka"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockOutbox struct {
	mock.Mock
}

func (m *MockOutbox) Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error {
	args := m.Called(ctx, tx, aggregate, aggregateID, topic, payload)
	return args.Error(0)
}

func (m *MockOutbox) LockUnpublished(ctx context.Context, tx *sqlx.Tx, limit int) ([]model.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutboxEvent), args.Error(1)
}

func (m *MockOutbox) MarkPublished(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	args := m.Called(ctx, tx, ids)
	return args.Error(0)
}

func (m *MockOutbox) BumpAttempts(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	args := m.Called(ctx, tx, ids)
	return args.Error(0)
}

type directTx struct{}

func (directTx) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error { return fn(nil) }

type fakePublisher struct {
	err  error
	msgs []kafka.Message
}

func (p *fakePublisher) Publish(ctx context.Context, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestEnqueueRoutesByKind(t *testing.T) {
	outbox := new(MockOutbox)
	svc := New(outbox, Topics{})

	hook, err := model.NewTask(model.TaskSendGridWebhook, json.RawMessage(`[]`))
	require.NoError(t, err)
	notify, err := model.NewTask(model.TaskNotifyHR, model.NotifyHRPayload{EmployerID: 1})
	require.NoError(t, err)

	outbox.On("Insert", mock.Anything, (*sqlx.Tx)(nil), "webhook.sendgrid", hook.ID, DefaultWebhooksTopic, mock.Anything).Return(nil).Once()
	outbox.On("Insert", mock.Anything, (*sqlx.Tx)(nil), "notify.hr", notify.ID, DefaultNotifyTopic, mock.Anything).Return(nil).Once()

	require.NoError(t, svc.Enqueue(context.Background(), nil, hook))
	require.NoError(t, svc.Enqueue(context.Background(), nil, notify))
	outbox.AssertExpectations(t)

	payload := outbox.Calls[0].Arguments.Get(5).([]byte)
	var decoded model.Task
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, hook.ID, decoded.ID)
	assert.JSONEq(t, `[]`, string(decoded.Payload))
}

func TestEnqueueRejectsIncompleteTask(t *testing.T) {
	svc := New(new(MockOutbox), Topics{})
	assert.Error(t, svc.Enqueue(context.Background(), nil, model.Task{}))
}

func TestRelayOncePublishesAndMarks(t *testing.T) {
	outbox := new(MockOutbox)
	pub := &fakePublisher{}
	r := &Relay{Tx: directTx{}, Outbox: outbox, Publisher: pub, Log: zap.NewNop(), BatchSize: 10}

	rows := []model.OutboxEvent{
		{ID: 1, Aggregate: "notify.hr", AggregateID: "01A", Topic: "tasks.notify", Payload: []byte(`{}`)},
		{ID: 2, Aggregate: "webhook.docusign", AggregateID: "01B", Topic: "tasks.webhooks", Payload: []byte(`{}`)},
	}
	outbox.On("LockUnpublished", mock.Anything, (*sqlx.Tx)(nil), 10).Return(rows, nil)
	outbox.On("MarkPublished", mock.Anything, (*sqlx.Tx)(nil), []int64{1, 2}).Return(nil)

	n, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "tasks.webhooks", pub.msgs[1].Topic)
	assert.Equal(t, []byte("01B"), pub.msgs[1].Key)
	outbox.AssertExpectations(t)
}

func TestRelayOnceBumpsAttemptsOnPublishFailure(t *testing.T) {
	outbox := new(MockOutbox)
	pub := &fakePublisher{err: errors.New("broker down")}
	r := &Relay{Tx: directTx{}, Outbox: outbox, Publisher: pub, Log: zap.NewNop(), BatchSize: 10}

	outbox.On("LockUnpublished", mock.Anything, (*sqlx.Tx)(nil), 10).
		Return([]model.OutboxEvent{{ID: 7, Topic: "tasks.notify"}}, nil)
	outbox.On("BumpAttempts", mock.Anything, (*sqlx.Tx)(nil), []int64{7}).Return(nil)

	_, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	outbox.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything, mock.Anything)
	outbox.AssertExpectations(t)
}
