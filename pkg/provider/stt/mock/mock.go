// Package mock provides scripted in-memory stt.Provider and stt.Stream
// implementations for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
)

// Provider implements stt.Provider with canned results.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call when TranscribeErr is nil.
	Result *stt.Result

	// TranscribeErr, when non-nil, fails every Transcribe call.
	TranscribeErr error

	// StreamEvents seeds each opened Stream's event channel. The channel is
	// closed only by Close; seeded events not yet read stay readable.
	StreamEvents []stt.Event

	// OpenErr, when non-nil, fails every OpenStream call.
	OpenErr error

	transcribeCalls int
	streams         []*Stream
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(_ context.Context, _ []byte, _ stt.AudioConfig) (*stt.Result, error) {
	p.mu.Lock()
	p.transcribeCalls++
	p.mu.Unlock()

	if p.TranscribeErr != nil {
		return nil, p.TranscribeErr
	}
	if p.Result == nil {
		return &stt.Result{}, nil
	}
	r := *p.Result
	return &r, nil
}

// OpenStream implements stt.Provider.
func (p *Provider) OpenStream(_ context.Context, _ stt.AudioConfig) (stt.Stream, error) {
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	s := &Stream{events: make(chan stt.Event, len(p.StreamEvents)+1)}
	for _, evt := range p.StreamEvents {
		s.events <- evt
	}
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()
	return s, nil
}

// TranscribeCalls returns how many Transcribe calls were made.
func (p *Provider) TranscribeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transcribeCalls
}

// Streams returns every Stream opened so far.
func (p *Provider) Streams() []*Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Stream(nil), p.streams...)
}

// Stream implements stt.Stream, recording sent audio.
type Stream struct {
	mu     sync.Mutex
	events chan stt.Event
	sent   [][]byte
	closed bool
}

// Send implements stt.Stream.
func (s *Stream) Send(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock stream is closed")
	}
	s.sent = append(s.sent, append([]byte(nil), chunk...))
	return nil
}

// Events implements stt.Stream.
func (s *Stream) Events() <-chan stt.Event { return s.events }

// Close implements stt.Stream. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Sent returns every audio chunk passed to Send.
func (s *Stream) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
