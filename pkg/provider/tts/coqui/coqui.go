// Package coqui implements tts.Provider against a self-hosted Coqui TTS
// server, the credential-free engine for local development. The server's
// /api/tts endpoint takes plain text, so SSML markup is stripped and the
// speed factor is ignored.
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/corvidlabs/interviewsim/pkg/provider/tts"
)

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements tts.Provider backed by a Coqui TTS server.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider talking to the Coqui server at baseURL
// (e.g. "http://localhost:5002").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

var markupTags = regexp.MustCompile(`<[^>]+>`)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	q := url.Values{}
	q.Set("text", markupTags.ReplaceAllString(req.SSML, " "))
	if req.Voice != "" {
		q.Set("speaker_id", req.Voice)
	}
	endpoint := p.baseURL + "/api/tts?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("coqui: synthesize returned HTTP %d: %s", resp.StatusCode, detail)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio: %w", err)
	}
	return audio, nil
}

// SynthesizeStream implements tts.Provider. The Coqui server does not
// stream; the full clip is synthesized and delivered as one chunk.
func (p *Provider) SynthesizeStream(ctx context.Context, req tts.Request) (<-chan []byte, error) {
	audio, err := p.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan []byte, 1)
	ch <- audio
	close(ch)
	return ch, nil
}
