package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

// SubmitBatchTranscription writes audio to a temporary file, creates a
// processing Speech Task Record, and launches a background worker to
// transcribe it. It returns the task id immediately; the client polls
// GetTaskStatus for the result.
//
// The temporary file is created synchronously so the caller's audio stream
// (typically an HTTP request body) need not outlive this call; the worker
// goroutine reads from the file path instead.
func (t *Tracker) SubmitBatchTranscription(ctx context.Context, sessionID string, audio io.Reader, cfg stt.AudioConfig) (string, error) {
	rec := newTaskRecord(sessionID, types.TaskSTTBatch)
	if err := t.store.CreateSpeechTask(ctx, rec); err != nil {
		return "", fmt.Errorf("speech: create task: %w", err)
	}

	tmp, err := os.CreateTemp("", "stt-batch-*.audio")
	if err != nil {
		t.failTask(ctx, rec, "failed to buffer audio")
		return rec.TaskID, nil
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, audio); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		t.failTask(ctx, rec, "failed to buffer audio")
		return rec.TaskID, nil
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		t.failTask(ctx, rec, "failed to buffer audio")
		return rec.TaskID, nil
	}

	go t.runBatchTranscription(context.WithoutCancel(ctx), rec, tmpPath, cfg)

	return rec.TaskID, nil
}

// runBatchTranscription is the background worker: acquire a capacity slot,
// transcribe with bounded retries, and record the outcome. The temp file at
// audioPath is removed on every exit path.
func (t *Tracker) runBatchTranscription(ctx context.Context, rec *types.SpeechTaskRecord, audioPath string, cfg stt.AudioConfig) {
	defer os.Remove(audioPath)

	start := time.Now()

	release, err := t.governor.Acquire(ctx, ratelimit.ProviderSTTBatch)
	if err != nil {
		t.failTask(ctx, rec, "rate limit exceeded")
		return
	}
	defer release()

	if t.sttProv == nil {
		t.failTask(ctx, rec, ErrProviderUnavailable.Error())
		return
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		t.failTask(ctx, rec, "failed to read buffered audio")
		return
	}

	var result *stt.Result
	attemptErr := withRetry(ctx, t.maxRetries, retryableAlways, func(int) error {
		r, err := t.sttProv.Transcribe(ctx, audio, cfg)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if attemptErr != nil {
		t.failTask(ctx, rec, attemptErr.Error())
		return
	}

	language := result.Language
	if language == "" {
		language = cfg.Language
	}
	t.completeTask(ctx, rec, map[string]any{
		"text":            result.Text,
		"confidence":      result.Confidence,
		"language":        language,
		"duration":        result.Duration.Seconds(),
		"processing_time": time.Since(start).Seconds(),
	})
}
