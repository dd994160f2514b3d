package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/interviewsim/pkg/provider/tts"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("")
	require.Error(t, err)

	p, err := New("xi-key")
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestSynthesize_SubmitsStrippedTextAndSpeed(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p, err := New("xi-key", WithBaseURL(srv.URL), WithModel("eleven_flash_v2_5"))
	require.NoError(t, err)

	audio, err := p.Synthesize(context.Background(), tts.Request{
		SSML:  `<speak><break time="250ms"/><prosody rate="120%">Hello there.</prosody></speak>`,
		Voice: "voice-1",
		Speed: 1.2,
	})
	require.NoError(t, err)
	require.Equal(t, "mp3-bytes", string(audio))

	require.Equal(t, "https://fd-gally.netlify.app/hf/v1/text-to-speech/voice-1", gotPath)
	require.Equal(t, "xi-key", gotKey)
	require.Equal(t, "eleven_flash_v2_5", gotBody["model_id"])
	require.NotContains(t, gotBody["text"], "<")
	require.Contains(t, gotBody["text"], "Hello there.")

	settings := gotBody["voice_settings"].(map[string]any)
	require.Equal(t, 1.2, settings["speed"])
}

func TestSynthesize_RequiresVoice(t *testing.T) {
	p, err := New("xi-key")
	require.NoError(t, err)

	_, err = p.Synthesize(context.Background(), tts.Request{SSML: "hi"})
	require.Error(t, err)
}

func TestSynthesize_NonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := New("xi-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Synthesize(context.Background(), tts.Request{SSML: "hi", Voice: "v"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestSynthesizeStream_DeliversChunksAndCloses(t *testing.T) {
	payload := make([]byte, streamChunkSize+100)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/stream")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	p, err := New("xi-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	ch, err := p.SynthesizeStream(context.Background(), tts.Request{SSML: "hi", Voice: "v"})
	require.NoError(t, err)

	var got []byte
	for chunk := range ch {
		got = append(got, chunk...)
	}
	require.Equal(t, payload, got)
}
