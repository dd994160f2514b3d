// Package elevenlabs implements tts.Provider against the ElevenLabs REST
// API: one call per synthesis, buffered or chunk-streamed.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/corvidlabs/interviewsim/pkg/provider/tts"
)

const (
	defaultBaseURL      = "https://api.elevenlabs.io"
	defaultModel        = "eleven_flash_v2_5"
	defaultOutputFormat = "mp3_44100_128"
	streamChunkSize     = 4096
)

// Option configures a Provider.
type Option func(*Provider)

// WithModel selects the ElevenLabs model (e.g. "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API base URL, for tests and proxies.
func WithBaseURL(base string) Option {
	return func(p *Provider) { p.baseURL = base }
}

// WithOutputFormat selects the audio container (e.g. "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// Provider implements tts.Provider backed by ElevenLabs.
type Provider struct {
	apiKey       string
	model        string
	baseURL      string
	outputFormat string
	httpClient   *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		baseURL:      defaultBaseURL,
		outputFormat: defaultOutputFormat,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesisBody is the JSON request ElevenLabs expects.
type synthesisBody struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// ssmlTags strips markup for submission: ElevenLabs takes plain text, with
// pacing carried in voice_settings rather than prosody elements.
var ssmlTags = regexp.MustCompile(`<[^>]+>`)

func (p *Provider) do(ctx context.Context, req tts.Request, stream bool) (*http.Response, error) {
	if req.Voice == "" {
		return nil, errors.New("elevenlabs: voice must not be empty")
	}

	path := "https://fd-gally.netlify.app/hf/v1/text-to-speech/" + req.Voice
	if stream {
		path += "/stream"
	}
	endpoint := fmt.Sprintf("%s%s?output_format=%s", p.baseURL, path, p.outputFormat)

	body := synthesisBody{
		Text:    ssmlTags.ReplaceAllString(req.SSML, " "),
		ModelID: p.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           req.Speed,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		resp.Body.Close()
		return nil, fmt.Errorf("elevenlabs: synthesize returned HTTP %d: %s", resp.StatusCode, detail)
	}
	return resp, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	resp, err := p.do(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return audio, nil
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, req tts.Request) (<-chan []byte, error) {
	resp, err := p.do(ctx, req, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan []byte, 8)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		for {
			buf := make([]byte, streamChunkSize)
			n, err := resp.Body.Read(buf)
			if n > 0 {
				select {
				case ch <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return ch, nil
}
