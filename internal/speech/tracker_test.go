package speech

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/internal/store"
	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
	sttmock "github.com/corvidlabs/interviewsim/pkg/provider/stt/mock"
	ttsmock "github.com/corvidlabs/interviewsim/pkg/provider/tts/mock"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

func waitForStatus(t *testing.T, tr *Tracker, taskID string, want types.SpeechTaskStatus, timeout time.Duration) *types.SpeechTaskRecord {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, err := tr.GetTaskStatus(context.Background(), taskID)
		if err == nil && rec.Status != types.SpeechProcessing {
			if rec.Status != want {
				t.Fatalf("task %s status = %q, want %q (error=%q)", taskID, rec.Status, want, rec.Error)
			}
			return rec
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach status %q within %s", taskID, want, timeout)
	return nil
}

func TestSubmitBatchTranscription_Success(t *testing.T) {
	provider := &sttmock.Provider{
		Result: &stt.Result{Text: "hello world", Confidence: 0.9, Duration: 3 * time.Second},
	}

	gw := store.NewMemoryGateway()
	gov := ratelimit.New(ratelimit.DefaultCapacities())
	tr := New(gw, gov, provider, nil, nil, 3)

	taskID, err := tr.SubmitBatchTranscription(context.Background(), "sess-1", strings.NewReader("fake audio bytes"), stt.AudioConfig{Language: "en-US"})
	if err != nil {
		t.Fatalf("SubmitBatchTranscription() unexpected error: %v", err)
	}

	rec := waitForStatus(t, tr, taskID, types.SpeechCompleted, 2*time.Second)
	if rec.Result["text"] != "hello world" {
		t.Errorf("Result[text] = %v, want 'hello world'", rec.Result["text"])
	}
	if rec.Result["language"] != "en-US" {
		t.Errorf("Result[language] = %v, want 'en-US' (from the request config)", rec.Result["language"])
	}
	if provider.TranscribeCalls() != 1 {
		t.Errorf("Transcribe called %d times, want 1", provider.TranscribeCalls())
	}
}

func TestSubmitBatchTranscription_RetriesProviderFailures(t *testing.T) {
	provider := &sttmock.Provider{TranscribeErr: context.DeadlineExceeded}

	gw := store.NewMemoryGateway()
	gov := ratelimit.New(ratelimit.DefaultCapacities())
	tr := New(gw, gov, provider, nil, nil, 2)

	taskID, err := tr.SubmitBatchTranscription(context.Background(), "sess-1", strings.NewReader("audio"), stt.AudioConfig{})
	if err != nil {
		t.Fatalf("SubmitBatchTranscription() unexpected error: %v", err)
	}

	waitForStatus(t, tr, taskID, types.SpeechError, 10*time.Second)
	if provider.TranscribeCalls() != 2 {
		t.Errorf("Transcribe called %d times, want 2 (maxRetries)", provider.TranscribeCalls())
	}
}

func TestSubmitBatchTranscription_RateLimitExceeded(t *testing.T) {
	provider := &sttmock.Provider{Result: &stt.Result{Text: "x"}}

	gw := store.NewMemoryGateway()
	gov := ratelimit.NewWithTimeout(ratelimit.Capacities{STTBatch: 1}, 10*time.Millisecond)
	tr := New(gw, gov, provider, nil, nil, 3)

	// Saturate the single slot first.
	release, err := gov.Acquire(context.Background(), ratelimit.ProviderSTTBatch)
	if err != nil {
		t.Fatalf("priming Acquire() unexpected error: %v", err)
	}
	defer release()

	taskID, err := tr.SubmitBatchTranscription(context.Background(), "sess-1", strings.NewReader("audio"), stt.AudioConfig{})
	if err != nil {
		t.Fatalf("SubmitBatchTranscription() unexpected error: %v", err)
	}

	rec := waitForStatus(t, tr, taskID, types.SpeechError, 2*time.Second)
	if rec.Error != "rate limit exceeded" {
		t.Errorf("Error = %q, want 'rate limit exceeded'", rec.Error)
	}
	if provider.TranscribeCalls() != 0 {
		t.Errorf("Transcribe called %d times without a slot, want 0", provider.TranscribeCalls())
	}
}

func TestSubmitBatchTranscription_NoProviderConfigured(t *testing.T) {
	gw := store.NewMemoryGateway()
	gov := ratelimit.New(ratelimit.DefaultCapacities())
	tr := New(gw, gov, nil, nil, nil, 3)

	taskID, err := tr.SubmitBatchTranscription(context.Background(), "sess-1", strings.NewReader("audio"), stt.AudioConfig{})
	if err != nil {
		t.Fatalf("SubmitBatchTranscription() unexpected error: %v", err)
	}
	rec := waitForStatus(t, tr, taskID, types.SpeechError, 2*time.Second)
	if rec.Error != ErrProviderUnavailable.Error() {
		t.Errorf("Error = %q, want %q", rec.Error, ErrProviderUnavailable.Error())
	}
}

func TestStartStreamingTranscription_CloseReleasesSlotAndCompletesTask(t *testing.T) {
	provider := &sttmock.Provider{}

	gw := store.NewMemoryGateway()
	gov := ratelimit.NewWithTimeout(ratelimit.Capacities{STTStream: 1}, 10*time.Millisecond)
	tr := New(gw, gov, provider, nil, nil, 3)

	stream, err := tr.StartStreamingTranscription(context.Background(), "sess-1", stt.AudioConfig{SampleRate: 16000})
	if err != nil {
		t.Fatalf("StartStreamingTranscription() unexpected error: %v", err)
	}

	if err := stream.SendAudio([]byte("chunk")); err != nil {
		t.Fatalf("SendAudio() unexpected error: %v", err)
	}

	if err := stream.Close(context.Background(), nil); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}

	// The slot must be free again: a second stream should be acquirable
	// immediately.
	stream2, err := tr.StartStreamingTranscription(context.Background(), "sess-1", stt.AudioConfig{})
	if err != nil {
		t.Fatalf("second StartStreamingTranscription() unexpected error: %v", err)
	}
	_ = stream2.Close(context.Background(), nil)

	rec, err := tr.GetTaskStatus(context.Background(), stream.TaskID())
	if err != nil {
		t.Fatalf("GetTaskStatus() unexpected error: %v", err)
	}
	if rec.Status != types.SpeechCompleted {
		t.Errorf("Status = %q, want completed", rec.Status)
	}
	if !provider.Streams()[0].Closed() {
		t.Errorf("expected the provider stream to be closed")
	}
}

func TestStartStreamingTranscription_CloseWithErrorMarksTaskError(t *testing.T) {
	provider := &sttmock.Provider{}

	gw := store.NewMemoryGateway()
	gov := ratelimit.New(ratelimit.DefaultCapacities())
	tr := New(gw, gov, provider, nil, nil, 3)

	stream, err := tr.StartStreamingTranscription(context.Background(), "sess-1", stt.AudioConfig{})
	if err != nil {
		t.Fatalf("StartStreamingTranscription() unexpected error: %v", err)
	}

	_ = stream.Close(context.Background(), context.Canceled)

	rec, err := tr.GetTaskStatus(context.Background(), stream.TaskID())
	if err != nil {
		t.Fatalf("GetTaskStatus() unexpected error: %v", err)
	}
	if rec.Status != types.SpeechError {
		t.Errorf("Status = %q, want error", rec.Status)
	}
}

func TestStartStreamingTranscription_EventsRelayProviderEvents(t *testing.T) {
	provider := &sttmock.Provider{
		StreamEvents: []stt.Event{
			{Type: stt.EventSpeechStarted},
			{Type: stt.EventTranscript, Text: "hello", IsFinal: true, Confidence: 0.95},
		},
	}

	gw := store.NewMemoryGateway()
	gov := ratelimit.New(ratelimit.DefaultCapacities())
	tr := New(gw, gov, provider, nil, nil, 3)

	stream, err := tr.StartStreamingTranscription(context.Background(), "sess-1", stt.AudioConfig{})
	if err != nil {
		t.Fatalf("StartStreamingTranscription() unexpected error: %v", err)
	}
	defer stream.Close(context.Background(), nil)

	evt := <-stream.Events()
	if evt.Type != stt.EventSpeechStarted {
		t.Errorf("first event type = %q, want speech_started", evt.Type)
	}
	evt = <-stream.Events()
	if evt.Type != stt.EventTranscript || !evt.IsFinal || evt.Text != "hello" {
		t.Errorf("second event = %+v, want a final 'hello' transcript", evt)
	}
}

func TestSynthesizeSpeech_CachesShortCommonPhrase(t *testing.T) {
	provider := &ttsmock.Provider{Audio: []byte("audio-bytes")}

	gw := store.NewMemoryGateway()
	gov := ratelimit.New(ratelimit.DefaultCapacities())
	tr := New(gw, gov, nil, provider, nil, 3)

	audio1, err := tr.SynthesizeSpeech(context.Background(), "Welcome, let's get started.", "v1", 1.0)
	if err != nil {
		t.Fatalf("SynthesizeSpeech() unexpected error: %v", err)
	}
	if string(audio1) != "audio-bytes" {
		t.Errorf("audio = %q, want 'audio-bytes'", audio1)
	}

	audio2, err := tr.SynthesizeSpeech(context.Background(), "Welcome, let's get started.", "v1", 1.0)
	if err != nil {
		t.Fatalf("second SynthesizeSpeech() unexpected error: %v", err)
	}
	if string(audio2) != "audio-bytes" {
		t.Errorf("cached audio = %q, want 'audio-bytes'", audio2)
	}

	if provider.CallCount() != 1 {
		t.Errorf("provider called %d times, want 1 (second call should hit cache)", provider.CallCount())
	}
}

func TestSynthesizeSpeech_PassesPreparedSSML(t *testing.T) {
	provider := &ttsmock.Provider{Audio: []byte("a")}

	gw := store.NewMemoryGateway()
	gov := ratelimit.New(ratelimit.DefaultCapacities())
	tr := New(gw, gov, nil, provider, nil, 3)

	if _, err := tr.SynthesizeSpeech(context.Background(), "a unique utterance <escaped>", "v2", 1.5); err != nil {
		t.Fatalf("SynthesizeSpeech() unexpected error: %v", err)
	}

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(calls))
	}
	req := calls[0]
	if req.Voice != "v2" || req.Speed != 1.5 {
		t.Errorf("request voice/speed = %q/%v, want v2/1.5", req.Voice, req.Speed)
	}
	if !strings.Contains(req.SSML, `<prosody rate="150%">`) {
		t.Errorf("SSML = %q, want a 150%% prosody wrapper", req.SSML)
	}
	if !strings.Contains(req.SSML, "&lt;escaped&gt;") {
		t.Errorf("SSML = %q, want HTML-escaped text", req.SSML)
	}
}

func TestSynthesizeSpeech_NoProviderConfigured(t *testing.T) {
	gw := store.NewMemoryGateway()
	gov := ratelimit.New(ratelimit.DefaultCapacities())
	tr := New(gw, gov, nil, nil, nil, 3)

	_, err := tr.SynthesizeSpeech(context.Background(), "hello", "", 1.0)
	if err != ErrProviderUnavailable {
		t.Fatalf("SynthesizeSpeech() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestSynthesizeSpeechStream_ReleasesSlotAfterDrain(t *testing.T) {
	provider := &ttsmock.Provider{Audio: []byte("chunk")}

	gw := store.NewMemoryGateway()
	gov := ratelimit.NewWithTimeout(ratelimit.Capacities{TTS: 1}, 10*time.Millisecond)
	tr := New(gw, gov, nil, provider, nil, 3)

	ch, release, err := tr.SynthesizeSpeechStream(context.Background(), "a totally unique phrase", "v1", 1.0)
	if err != nil {
		t.Fatalf("SynthesizeSpeechStream() unexpected error: %v", err)
	}
	for range ch {
	}
	release()

	if !tr.Available(ratelimit.ProviderTTS) {
		t.Errorf("TTS slot still held after release")
	}
}

func TestAvailable_DelegatesToGovernor(t *testing.T) {
	gw := store.NewMemoryGateway()
	gov := ratelimit.NewWithTimeout(ratelimit.Capacities{TTS: 1}, 10*time.Millisecond)
	tr := New(gw, gov, nil, nil, nil, 3)

	if !tr.Available(ratelimit.ProviderTTS) {
		t.Fatalf("Available() = false before any acquisition")
	}

	release, err := gov.Acquire(context.Background(), ratelimit.ProviderTTS)
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}
	defer release()

	if tr.Available(ratelimit.ProviderTTS) {
		t.Errorf("Available() = true after saturating the only slot")
	}
}

func TestCleanupExpiredTasks_DelegatesToStore(t *testing.T) {
	gw := store.NewMemoryGateway()
	gov := ratelimit.New(ratelimit.DefaultCapacities())
	tr := New(gw, gov, nil, nil, nil, 3)

	old := &types.SpeechTaskRecord{TaskID: "old", UpdatedAt: time.Now().Add(-48 * time.Hour)}
	if err := gw.CreateSpeechTask(context.Background(), old); err != nil {
		t.Fatalf("CreateSpeechTask() unexpected error: %v", err)
	}

	n, err := tr.CleanupExpiredTasks(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpiredTasks() unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("CleanupExpiredTasks() = %d, want 1", n)
	}
}
