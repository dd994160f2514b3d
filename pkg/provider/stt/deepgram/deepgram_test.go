package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("")
	require.Error(t, err)

	p, err := New("dg-key")
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestTranscribe_ParsesPrerecordedResponse(t *testing.T) {
	var gotAuth, gotModel, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotModel = r.URL.Query().Get("model")
		gotLang = r.URL.Query().Get("language")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"metadata": {"duration": 4.5},
			"results": {"channels": [{"alternatives": [
				{"transcript": "I led a team of four.", "confidence": 0.93}
			]}]}
		}`))
	}))
	defer srv.Close()

	p, err := New("dg-key", WithModel("nova-3"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	result, err := p.Transcribe(context.Background(), []byte("audio"), stt.AudioConfig{Language: "en-US"})
	require.NoError(t, err)
	require.Equal(t, "I led a team of four.", result.Text)
	require.InDelta(t, 0.93, result.Confidence, 1e-9)
	require.Equal(t, "en-US", result.Language)
	require.Equal(t, 4500*time.Millisecond, result.Duration)

	require.Equal(t, "Token dg-key", gotAuth)
	require.Equal(t, "nova-3", gotModel)
	require.Equal(t, "en-US", gotLang)
}

func TestTranscribe_NonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_msg": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := New("dg-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Transcribe(context.Background(), []byte("audio"), stt.AudioConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestTranscribe_EmptyChannelsIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": {"channels": []}}`))
	}))
	defer srv.Close()

	p, err := New("dg-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Transcribe(context.Background(), []byte("audio"), stt.AudioConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no transcript")
}

func TestParseLiveMessages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want stt.Event
	}{
		{
			name: "interim result",
			raw:  `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hel","confidence":0.4}]}}`,
			want: stt.Event{Type: stt.EventTranscript, Text: "hel", IsFinal: false, Confidence: 0.4},
		},
		{
			name: "final result",
			raw:  `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello","confidence":0.9}]}}`,
			want: stt.Event{Type: stt.EventTranscript, Text: "hello", IsFinal: true, Confidence: 0.9},
		},
		{
			name: "speech started",
			raw:  `{"type":"SpeechStarted"}`,
			want: stt.Event{Type: stt.EventSpeechStarted},
		},
		{
			name: "utterance end",
			raw:  `{"type":"UtteranceEnd"}`,
			want: stt.Event{Type: stt.EventUtteranceEnd},
		},
		{
			name: "provider error",
			raw:  `{"type":"Error","description":"bad audio"}`,
			want: stt.Event{Type: stt.EventError, Err: "bad audio"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &liveStream{events: make(chan stt.Event, 1), done: make(chan struct{})}
			s.dispatch([]byte(tt.raw))
			select {
			case got := <-s.events:
				require.Equal(t, tt.want, got)
			default:
				t.Fatal("no event emitted")
			}
		})
	}
}

func TestDispatch_IgnoresMalformedAndUnknownMessages(t *testing.T) {
	s := &liveStream{events: make(chan stt.Event, 1), done: make(chan struct{})}
	s.dispatch([]byte(`not json`))
	s.dispatch([]byte(`{"type":"KeepAlive"}`))
	s.dispatch([]byte(`{"type":"Results","channel":{"alternatives":[]}}`))
	require.Empty(t, s.events)
}
