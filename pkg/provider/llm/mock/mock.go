// Package mock provides a scripted in-memory llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/corvidlabs/interviewsim/pkg/provider/llm"
)

// Provider implements llm.Provider with canned replies. Responses are
// consumed in order; once exhausted, the last one repeats. When Err is set
// every call fails with it instead.
//
// The zero value is usable and replies with an empty Response.
type Provider struct {
	mu sync.Mutex

	// Responses are the reply texts, consumed in call order.
	Responses []string

	// Err, when non-nil, makes every Generate call fail.
	Err error

	// Calls records every request received, in order.
	Calls []llm.Request
}

// Generate implements llm.Provider.
func (p *Provider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.Calls)
	p.Calls = append(p.Calls, req)

	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.Responses) == 0 {
		return &llm.Response{}, nil
	}
	if n >= len(p.Responses) {
		n = len(p.Responses) - 1
	}
	return &llm.Response{Text: p.Responses[n]}, nil
}

// CallCount returns how many Generate calls the provider has received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// LastCall returns the most recent request, or a zero Request if none.
func (p *Provider) LastCall() llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return llm.Request{}
	}
	return p.Calls[len(p.Calls)-1]
}
