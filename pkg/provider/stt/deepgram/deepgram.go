// Package deepgram implements stt.Provider against the Deepgram API: the
// prerecorded REST endpoint for batch transcription and the live WebSocket
// endpoint for streaming.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
)

const (
	defaultRESTBase = "https://api.deepgram.com/v1/listen"
	defaultWSBase   = "wss://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3"
	defaultLanguage = "en"
)

// Option configures a Provider.
type Option func(*Provider)

// WithModel selects the Deepgram model (e.g. "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides both API endpoints, deriving the WebSocket scheme
// from the HTTP one. Intended for tests and proxies.
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		p.restBase = base
		if u, err := url.Parse(base); err == nil {
			switch u.Scheme {
			case "https":
				u.Scheme = "wss"
			case "http":
				u.Scheme = "ws"
			}
			p.wsBase = u.String()
		}
	}
}

// WithHTTPClient overrides the HTTP client used for batch requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider backed by Deepgram.
type Provider struct {
	apiKey     string
	model      string
	restBase   string
	wsBase     string
	httpClient *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		restBase:   defaultRESTBase,
		wsBase:     defaultWSBase,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Provider) queryParams(cfg stt.AudioConfig, live bool) url.Values {
	q := url.Values{}
	q.Set("model", p.model)
	q.Set("punctuate", "true")
	lang := cfg.Language
	if lang == "" {
		lang = defaultLanguage
	}
	q.Set("language", lang)
	if live {
		q.Set("interim_results", "true")
		q.Set("vad_events", "true")
		q.Set("utterance_end_ms", "1000")
		if cfg.SampleRate > 0 {
			q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
		}
		if cfg.Channels > 0 {
			q.Set("channels", strconv.Itoa(cfg.Channels))
		}
	}
	return q
}

// prerecordedResponse is the subset of Deepgram's batch response the
// adapter consumes.
type prerecordedResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe implements stt.Provider via the prerecorded endpoint. The
// audio bytes are sent as-is; Deepgram detects the container format.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, cfg stt.AudioConfig) (*stt.Result, error) {
	endpoint := p.restBase + "?" + p.queryParams(cfg, false).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram: transcribe: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("deepgram: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram: transcribe returned HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed prerecordedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("deepgram: decode response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return nil, errors.New("deepgram: response carried no transcript")
	}

	ch := parsed.Results.Channels[0]
	alt := ch.Alternatives[0]
	lang := ch.DetectedLanguage
	if lang == "" {
		lang = cfg.Language
	}
	return &stt.Result{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Language:   lang,
		Duration:   time.Duration(parsed.Metadata.Duration * float64(time.Second)),
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// OpenStream implements stt.Provider via the live WebSocket endpoint.
func (p *Provider) OpenStream(ctx context.Context, cfg stt.AudioConfig) (stt.Stream, error) {
	endpoint := p.wsBase + "?" + p.queryParams(cfg, true).Encode()
	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	s := &liveStream{
		conn:   conn,
		events: make(chan stt.Event, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop(context.WithoutCancel(ctx))
	return s, nil
}

// liveMessage is the subset of Deepgram's live-API messages the adapter
// consumes; Type discriminates the payload.
type liveMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
}

type liveStream struct {
	conn   *websocket.Conn
	events chan stt.Event

	done      chan struct{}
	closeOnce sync.Once
}

// Send implements stt.Stream.
func (s *liveStream) Send(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: stream is closed")
	default:
	}
	return s.conn.Write(context.Background(), websocket.MessageBinary, chunk)
}

// Events implements stt.Stream.
func (s *liveStream) Events() <-chan stt.Event { return s.events }

// Close implements stt.Stream. It asks Deepgram to flush pending audio and
// tears the socket down; the read loop observes the closed connection and
// closes the Events channel.
func (s *liveStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.conn.Close(websocket.StatusNormalClosure, "stream closed")
	})
	return nil
}

func (s *liveStream) readLoop(ctx context.Context) {
	defer close(s.events)
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done: // caller closed; not an error
			default:
				s.emit(stt.Event{Type: stt.EventError, Err: err.Error()})
			}
			return
		}
		s.dispatch(data)
	}
}

// dispatch translates one raw provider message into at most one Event.
// Malformed and unrecognized messages are dropped.
func (s *liveStream) dispatch(data []byte) {
	var msg liveMessage
	if json.Unmarshal(data, &msg) != nil {
		return
	}
	switch msg.Type {
	case "Results":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]
		s.emit(stt.Event{
			Type:       stt.EventTranscript,
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
		})
	case "SpeechStarted":
		s.emit(stt.Event{Type: stt.EventSpeechStarted})
	case "UtteranceEnd":
		s.emit(stt.Event{Type: stt.EventUtteranceEnd})
	case "Metadata":
		s.emit(stt.Event{Type: stt.EventMetadata})
	case "Error":
		s.emit(stt.Event{Type: stt.EventError, Err: msg.Description})
	}
}

// emit delivers evt unless the stream is closing, so a consumer that
// stopped draining cannot wedge the read loop past Close.
func (s *liveStream) emit(evt stt.Event) {
	select {
	case s.events <- evt:
	case <-s.done:
	}
}
