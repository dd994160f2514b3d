// Package mock provides a scripted in-memory tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/corvidlabs/interviewsim/pkg/provider/tts"
)

// Provider implements tts.Provider with canned audio.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize and, split into single-chunk form,
	// by SynthesizeStream.
	Audio []byte

	// Err, when non-nil, fails every call.
	Err error

	calls []tts.Request
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(_ context.Context, req tts.Request) ([]byte, error) {
	p.record(req)
	if p.Err != nil {
		return nil, p.Err
	}
	return append([]byte(nil), p.Audio...), nil
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(_ context.Context, req tts.Request) (<-chan []byte, error) {
	p.record(req)
	if p.Err != nil {
		return nil, p.Err
	}
	ch := make(chan []byte, 1)
	if len(p.Audio) > 0 {
		ch <- append([]byte(nil), p.Audio...)
	}
	close(ch)
	return ch, nil
}

func (p *Provider) record(req tts.Request) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
}

// Calls returns every request received so far, in order.
func (p *Provider) Calls() []tts.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tts.Request(nil), p.calls...)
}

// CallCount returns how many synthesis calls were made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
