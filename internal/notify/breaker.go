package notify

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the provider while a tenant's
// breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

type state int

const (
	closed state = iota
	open
	halfOpen
)

// breaker trips after failThreshold consecutive failures and lets a single
// probe through once openFor has elapsed.
type breaker struct {
	mu               sync.Mutex
	st               state
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
	now              func() time.Time
}

func newBreaker(threshold int, openFor time.Duration, now func() time.Time) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &breaker{failThreshold: threshold, openFor: openFor, now: now}
}

func (b *breaker) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case open:
		if b.now().After(b.nextTryAt) && !b.probeInFlight {
			b.st = halfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case halfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.consecutiveFails = 0
		b.st = closed
		b.probeInFlight = false
		return
	}

	if b.st == halfOpen {
		b.st = open
		b.nextTryAt = b.now().Add(b.openFor)
		b.probeInFlight = false
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.st = open
		b.nextTryAt = b.now().Add(b.openFor)
	}
}

// breakers holds one breaker per (employer, channel). A tenant with broken
// credentials trips only its own circuit.
type breakers struct {
	mu        sync.Mutex
	byKey     map[string]*breaker
	threshold int
	openFor   time.Duration
	now       func() time.Time
}

func newBreakers(threshold int, openFor time.Duration) *breakers {
	return &breakers{
		byKey:     make(map[string]*breaker),
		threshold: threshold,
		openFor:   openFor,
		now:       time.Now,
	}
}

func (s *breakers) get(employerID int64, channel string) *breaker {
	key := fmt.Sprintf("%d:%s", employerID, channel)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byKey[key]
	if !ok {
		b = newBreaker(s.threshold, s.openFor, s.now)
		s.byKey[key] = b
	}
	return b
}
