package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/staffhooks/internal/kafka"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.msgs) > 0 {
		m := s.msgs[0]
		s.msgs = s.msgs[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *fakeSource) Commit(_ context.Context, m kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, m.Offset)
	return nil
}

func (s *fakeSource) commits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

func message(t *testing.T, offset int64, kind model.TaskKind) kafka.Message {
	t.Helper()
	tk, err := model.NewTask(kind, map[string]string{"k": "v"})
	require.NoError(t, err)
	b, err := json.Marshal(tk)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestProcessOneRunsHandlerAndCommits(t *testing.T) {
	src := &fakeSource{}
	var got model.Task
	w := NewTaskWorker(src, map[model.TaskKind]Handler{
		model.TaskBulkSMS: func(_ context.Context, t model.Task) model.Result {
			got = t
			return model.Done(model.ResultSent)
		},
	}, 1, nil)

	res := w.ProcessOne(context.Background(), message(t, 7, model.TaskBulkSMS))

	assert.Equal(t, model.ResultSent, res.Status)
	assert.Equal(t, model.TaskBulkSMS, got.Kind)
	assert.JSONEq(t, `{"k":"v"}`, string(got.Payload))
	assert.Equal(t, []int64{7}, src.commits())
}

func TestProcessOneCommitsPoisonMessages(t *testing.T) {
	src := &fakeSource{}
	w := NewTaskWorker(src, map[model.TaskKind]Handler{}, 1, nil)

	res := w.ProcessOne(context.Background(), kafka.Message{Offset: 1, Value: []byte("not json")})
	assert.True(t, res.Failed())

	res = w.ProcessOne(context.Background(), message(t, 2, model.TaskNotifyHR))
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "no handler")

	assert.Equal(t, []int64{1, 2}, src.commits())
}

func TestProcessOneRecoversPanics(t *testing.T) {
	src := &fakeSource{}
	w := NewTaskWorker(src, map[model.TaskKind]Handler{
		model.TaskNotifyHR: func(context.Context, model.Task) model.Result { panic("nil map") },
	}, 1, nil)

	res := w.ProcessOne(context.Background(), message(t, 3, model.TaskNotifyHR))

	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "nil map")
	assert.Equal(t, []int64{3}, src.commits())
}

func TestRunDrainsSource(t *testing.T) {
	src := &fakeSource{}
	for i := int64(0); i < 5; i++ {
		src.msgs = append(src.msgs, message(t, i, model.TaskBulkEmail))
	}
	w := NewTaskWorker(src, map[model.TaskKind]Handler{
		model.TaskBulkEmail: func(context.Context, model.Task) model.Result { return model.Done(model.ResultSent) },
	}, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(src.commits()) == 5 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestRunRequiresHandlers(t *testing.T) {
	w := NewTaskWorker(&fakeSource{}, nil, 1, nil)
	assert.Error(t, w.Run(context.Background()))
}

type memSmsLogs struct {
	mu      sync.Mutex
	batches [][]model.SmsLog
}

func (m *memSmsLogs) InsertEmailEvent(context.Context, model.EmailEvent) error           { return nil }
func (m *memSmsLogs) InsertWhatsAppMessage(context.Context, model.WhatsAppMessage) error { return nil }

func (m *memSmsLogs) InsertSmsLogBatch(_ context.Context, rows []model.SmsLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]model.SmsLog(nil), rows...))
	return nil
}

func (m *memSmsLogs) rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestSmsLogWriterFlushesOnSize(t *testing.T) {
	logs := &memSmsLogs{}
	w := NewSmsLogWriter(logs, 2, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Add(model.SmsLog{Phone: "+1"}, model.SmsLog{Phone: "+2"}, model.SmsLog{Phone: "+3"})

	assert.Eventually(t, func() bool { return logs.rows() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSmsLogWriterDrainsOnShutdown(t *testing.T) {
	logs := &memSmsLogs{}
	w := NewSmsLogWriter(logs, 100, time.Hour, nil)
	w.Add(model.SmsLog{Phone: "+1"}, model.SmsLog{Phone: "+2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	assert.Equal(t, 2, logs.rows())
}
