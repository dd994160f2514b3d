package speech

import (
	"context"
	"fmt"
	"sync"

	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

// StreamSession wraps one live streaming transcription connection: the
// provider stream, its governor slot, and the Speech Task Record tracking
// it for traceability. The WebSocket handler owns a StreamSession for the
// lifetime of one client connection.
type StreamSession struct {
	taskID  string
	stream  stt.Stream
	release func()

	closeOnce sync.Once
	tracker   *Tracker
}

// TaskID returns the Speech Task Record id created for this connection.
func (s *StreamSession) TaskID() string { return s.taskID }

// SendAudio forwards one client audio frame to the provider.
func (s *StreamSession) SendAudio(chunk []byte) error {
	return s.stream.Send(chunk)
}

// Events returns the provider's transcription event channel.
func (s *StreamSession) Events() <-chan stt.Event { return s.stream.Events() }

// Close ends the provider stream, releases the governor slot, and marks
// the task record completed (or error, if closeErr is non-nil). Safe to
// call more than once; only the first call has effect.
func (s *StreamSession) Close(ctx context.Context, closeErr error) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.stream.Close()
		s.release()
		s.finalizeRecord(ctx, closeErr)
	})
	return err
}

func (s *StreamSession) finalizeRecord(ctx context.Context, closeErr error) {
	rec, loadErr := s.tracker.store.LoadSpeechTask(ctx, s.taskID)
	if loadErr != nil {
		rec = &types.SpeechTaskRecord{TaskID: s.taskID}
	}
	if closeErr != nil {
		s.tracker.failTask(ctx, rec, closeErr.Error())
		return
	}
	s.tracker.completeTask(ctx, rec, rec.Result)
}

// StartStreamingTranscription creates a Speech Task Record, acquires an
// STT-stream Rate Governor slot, and opens a provider stream. Ending the
// returned StreamSession (via Close) always releases the slot, whether the
// client or the provider disconnected first.
func (t *Tracker) StartStreamingTranscription(ctx context.Context, sessionID string, cfg stt.AudioConfig) (*StreamSession, error) {
	if t.sttProv == nil {
		return nil, ErrProviderUnavailable
	}

	rec := newTaskRecord(sessionID, types.TaskSTTStream)
	if err := t.store.CreateSpeechTask(ctx, rec); err != nil {
		return nil, fmt.Errorf("speech: create stream task: %w", err)
	}

	release, err := t.governor.Acquire(ctx, ratelimit.ProviderSTTStream)
	if err != nil {
		t.failTask(ctx, rec, "rate limit exceeded")
		return nil, ratelimit.ErrCapacityExhausted
	}

	stream, err := t.sttProv.OpenStream(ctx, cfg)
	if err != nil {
		release()
		t.failTask(ctx, rec, err.Error())
		return nil, fmt.Errorf("speech: opening provider stream: %w", err)
	}

	return &StreamSession{taskID: rec.TaskID, stream: stream, release: release, tracker: t}, nil
}
