package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/staffhooks/internal/config"
	"github.com/jmehdipour/staffhooks/internal/credentials"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSMS struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]int // recipient -> failures before success (-1 always)
}

func (f *fakeSMS) SendSMS(_ context.Context, _ credentials.Twilio, to, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[to]++
	n, ok := f.fail[to]
	if ok && (n < 0 || f.calls[to] <= n) {
		return errors.New("provider rejected")
	}
	return nil
}

type fakeEmail struct {
	mu   sync.Mutex
	sent map[string]Email
	fail map[string]bool
}

func (f *fakeEmail) SendEmail(_ context.Context, _ credentials.SendGrid, to string, msg Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("bounced")
	}
	if f.sent == nil {
		f.sent = map[string]Email{}
	}
	f.sent[to] = msg
	return nil
}

func testConfig() config.DispatcherConfig {
	return config.DispatcherConfig{
		SendConcurrency:  4,
		MaxRetryAttempts: config.MaxRetryAttempts{SMS: 2, Email: 2},
		Breaker:          config.BreakerConfig{FailThreshold: 3, OpenForMs: 60000},
	}
}

func TestSendEmailIsolatesRecipientFailures(t *testing.T) {
	email := &fakeEmail{fail: map[string]bool{"b@x.com": true}}
	d := NewDispatcher(&fakeSMS{}, email, testConfig(), nil)

	sum := d.SendEmail(context.Background(), 1, credentials.SendGrid{}, []string{"A@x.com", "b@x.com", "c@x.com", "a@x.com"}, Email{Subject: "hi"})

	sort.Strings(sum.Sent)
	assert.Equal(t, []string{"a@x.com", "c@x.com"}, sum.Sent)
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, "b@x.com", sum.Failed[0].Recipient)
	assert.Equal(t, model.ResultPartial, sum.Result().Status)
}

func TestSendSMSRetriesAndNormalizes(t *testing.T) {
	sms := &fakeSMS{fail: map[string]int{"+15550001111": 1}}
	d := NewDispatcher(sms, &fakeEmail{}, testConfig(), nil)

	sum := d.SendSMS(context.Background(), 1, credentials.Twilio{}, []string{"(555) 000-1111", "abc"}, "hello")

	assert.Equal(t, []string{"+15550001111"}, sum.Sent)
	assert.Equal(t, 2, sms.calls["+15550001111"])
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, "abc", sum.Failed[0].Recipient)
	assert.Equal(t, ErrInvalidRecipient.Error(), sum.Failed[0].Error)
}

func TestBreakerIsPerTenant(t *testing.T) {
	sms := &fakeSMS{fail: map[string]int{"+15550001111": -1}}
	cfg := testConfig()
	cfg.MaxRetryAttempts.SMS = 1
	d := NewDispatcher(sms, &fakeEmail{}, cfg, nil)

	for i := 0; i < 3; i++ {
		d.SendSMS(context.Background(), 1, credentials.Twilio{}, []string{"+15550001111"}, "x")
	}

	sum := d.SendSMS(context.Background(), 1, credentials.Twilio{}, []string{"+15550002222"}, "x")
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, ErrCircuitOpen.Error(), sum.Failed[0].Error)

	sum = d.SendSMS(context.Background(), 2, credentials.Twilio{}, []string{"+15550002222"}, "x")
	assert.Equal(t, []string{"+15550002222"}, sum.Sent)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Unix(0, 0)
	b := newBreaker(1, time.Second, func() time.Time { return now })

	require.True(t, b.acquire())
	b.record(errors.New("boom"))
	assert.False(t, b.acquire())

	now = now.Add(2 * time.Second)
	assert.True(t, b.acquire())
	assert.False(t, b.acquire(), "only one probe while half-open")

	b.record(nil)
	assert.True(t, b.acquire())
}

func TestSummaryResult(t *testing.T) {
	assert.Equal(t, model.ResultSkipped, Summary{}.Result().Status)
	assert.Equal(t, model.ResultSent, Summary{Sent: []string{"a"}}.Result().Status)
	assert.Equal(t, model.ResultFailed, Summary{Failed: []Failure{{Recipient: "a"}}}.Result().Status)
}

func TestFetchAllSkipsFailedAttachments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/handbook.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewAttachmentFetcher(config.AttachmentConfig{}, nil)
	got := f.FetchAll(context.Background(), []string{srv.URL + "/handbook.pdf", srv.URL + "/missing.pdf"})

	require.Len(t, got, 1)
	assert.Equal(t, "handbook.pdf", got[0].Filename)
	assert.Equal(t, "application/pdf", got[0].ContentType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")), got[0].Content)
}

func TestFetchAllRespectsSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	f := NewAttachmentFetcher(config.AttachmentConfig{MaxBytes: 16}, nil)
	assert.Empty(t, f.FetchAll(context.Background(), []string{srv.URL + "/big.bin"}))
}
