// Package ratelimit implements the Rate Governor: per-provider counting
// semaphores that bound concurrent calls into external speech, TTS, and
// search APIs.
package ratelimit

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Provider names the external API a slot is being acquired for.
type Provider string

const (
	ProviderSTTBatch  Provider = "stt_batch"
	ProviderTTS       Provider = "tts"
	ProviderSTTStream Provider = "stt_stream"
	ProviderSearch    Provider = "search"
)

// ErrCapacityExhausted is returned when a provider's slots are all in use
// and the acquisition timeout elapses first.
var ErrCapacityExhausted = errors.New("ratelimit: provider capacity exhausted")

// ErrUnknownProvider is returned for a Provider the Governor was not
// configured with.
var ErrUnknownProvider = errors.New("ratelimit: unknown provider")

// Capacities holds the configured concurrency limit per provider.
type Capacities struct {
	STTBatch  int64
	TTS       int64
	STTStream int64
	Search    int64
}

// DefaultCapacities holds the provider free-tier limits the service ships
// with: 5 concurrent batch transcriptions, 26 concurrent generative voice
// requests, 10 streaming connections, 3 concurrent searches.
func DefaultCapacities() Capacities {
	return Capacities{STTBatch: 5, TTS: 26, STTStream: 10, Search: 3}
}

type slot struct {
	sem       *semaphore.Weighted
	capacity  int64
	active    atomic.Int64
	total     atomic.Int64
	errors    atomic.Int64
}

// Stats is a point-in-time usage snapshot for one provider.
type Stats struct {
	ActiveConnections int64
	AvailableSlots    int64
	TotalRequests     int64
	Errors            int64
}

// Governor bounds concurrent access to external providers using weighted
// semaphores, one per provider, each acquired with a fixed timeout so a
// saturated provider fails fast instead of hanging the caller.
type Governor struct {
	timeout time.Duration
	slots   map[Provider]*slot
}

// New builds a Governor with the given capacities and the default 5s
// acquisition timeout.
func New(cap Capacities) *Governor {
	return NewWithTimeout(cap, 5*time.Second)
}

// NewWithTimeout is New with an explicit acquisition timeout, for tests.
func NewWithTimeout(cap Capacities, timeout time.Duration) *Governor {
	g := &Governor{
		timeout: timeout,
		slots:   make(map[Provider]*slot, 4),
	}
	g.slots[ProviderSTTBatch] = newSlot(cap.STTBatch)
	g.slots[ProviderTTS] = newSlot(cap.TTS)
	g.slots[ProviderSTTStream] = newSlot(cap.STTStream)
	g.slots[ProviderSearch] = newSlot(cap.Search)
	return g
}

func newSlot(capacity int64) *slot {
	if capacity <= 0 {
		capacity = 1
	}
	return &slot{sem: semaphore.NewWeighted(capacity), capacity: capacity}
}

// Acquire blocks until a slot for provider is available or the governor's
// acquisition timeout elapses, whichever comes first. The caller must call
// the returned release func exactly once, typically via defer immediately
// after a successful Acquire.
func (g *Governor) Acquire(ctx context.Context, p Provider) (release func(), err error) {
	s, ok := g.slots[p]
	if !ok {
		return nil, ErrUnknownProvider
	}
	acqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := s.sem.Acquire(acqCtx, 1); err != nil {
		s.errors.Add(1)
		return nil, ErrCapacityExhausted
	}
	s.active.Add(1)
	s.total.Add(1)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		s.active.Add(-1)
		s.sem.Release(1)
	}, nil
}

// Available reports whether provider currently has at least one free slot,
// without blocking or reserving it.
func (g *Governor) Available(p Provider) bool {
	s, ok := g.slots[p]
	if !ok {
		return false
	}
	return s.capacity-s.active.Load() > 0
}

// Stats returns a usage snapshot for every configured provider.
func (g *Governor) Stats() map[Provider]Stats {
	out := make(map[Provider]Stats, len(g.slots))
	for p, s := range g.slots {
		out[p] = Stats{
			ActiveConnections: s.active.Load(),
			AvailableSlots:    s.capacity - s.active.Load(),
			TotalRequests:     s.total.Load(),
			Errors:            s.errors.Load(),
		}
	}
	return out
}
