// Package speech implements the Speech Task Tracker (C8): batch and
// streaming speech-to-text transcription plus text-to-speech synthesis, each
// governed by the Rate Governor and persisted through the Store Gateway for
// polling clients.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/internal/store"
	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
	"github.com/corvidlabs/interviewsim/pkg/provider/tts"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

// ErrCapacityExhausted is surfaced to callers when a Rate Governor slot
// could not be acquired before the governor's acquisition timeout.
var ErrCapacityExhausted = ratelimit.ErrCapacityExhausted

// defaultMaxRetries is the three-attempt retry budget for failed provider
// calls. The workers retry every error alike (retryableAlways); throttled
// or 5xx responses are not told apart from other failures.
const defaultMaxRetries = 3

// Tracker owns the three speech workflows and the small TTS audio cache.
// A single Tracker is shared across all sessions; Rate Governor slots, not
// Tracker state, are what bound concurrency per provider.
type Tracker struct {
	store      store.Gateway
	governor   *ratelimit.Governor
	sttProv    stt.Provider
	ttsProv    tts.Provider
	logger     *slog.Logger
	maxRetries int

	cache *ttsCache
}

// New constructs a Tracker. maxRetries <= 0 falls back to the documented
// default of three attempts.
func New(storeGW store.Gateway, governor *ratelimit.Governor, sttProv stt.Provider, ttsProv tts.Provider, logger *slog.Logger, maxRetries int) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Tracker{
		store:      storeGW,
		governor:   governor,
		sttProv:    sttProv,
		ttsProv:    ttsProv,
		logger:     logger,
		maxRetries: maxRetries,
		cache:      newTTSCache(50),
	}
}

// Available reports whether provider currently has a free Rate Governor
// slot, for the API layer's immediate back-pressure check: "if available is
// false when a new request arrives, return 503/429 without acquiring a
// slot."
func (t *Tracker) Available(p ratelimit.Provider) bool {
	return t.governor.Available(p)
}

// GetTaskStatus retrieves a Speech Task Record by id, for the polling HTTP
// endpoint.
func (t *Tracker) GetTaskStatus(ctx context.Context, taskID string) (*types.SpeechTaskRecord, error) {
	return t.store.LoadSpeechTask(ctx, taskID)
}

// CleanupExpiredTasks removes speech task records older than retention and
// returns how many it removed. No background sweep in this module calls it.
func (t *Tracker) CleanupExpiredTasks(ctx context.Context, retention time.Duration) (int, error) {
	return t.store.CleanupSpeechTasks(ctx, retention)
}

func newTaskRecord(sessionID string, taskType types.SpeechTaskType) *types.SpeechTaskRecord {
	now := time.Now()
	return &types.SpeechTaskRecord{
		TaskID:    uuid.NewString(),
		SessionID: sessionID,
		TaskType:  taskType,
		Status:    types.SpeechProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t *Tracker) saveTask(ctx context.Context, rec *types.SpeechTaskRecord) {
	rec.UpdatedAt = time.Now()
	if err := t.store.SaveSpeechTask(ctx, rec); err != nil {
		t.logger.Error("speech: failed to persist task", "task_id", rec.TaskID, "error", err)
	}
}

func (t *Tracker) failTask(ctx context.Context, rec *types.SpeechTaskRecord, message string) {
	rec.Status = types.SpeechError
	rec.Error = message
	t.saveTask(ctx, rec)
}

func (t *Tracker) completeTask(ctx context.Context, rec *types.SpeechTaskRecord, result map[string]any) {
	rec.Status = types.SpeechCompleted
	rec.Result = result
	rec.Error = ""
	t.saveTask(ctx, rec)
}

// isRetryableFunc classifies errors the provider retry loop should back off and
// retry, versus errors that should fail immediately.
type isRetryableFunc func(error) bool

// retryableAlways treats every error returned by attempt as worth
// retrying.
func retryableAlways(error) bool { return true }

// withRetry runs attempt up to maxRetries times, sleeping 2**n seconds
// plus up to a second of jitter between attempts. It returns the last
// error if every attempt is exhausted, or immediately if isRetryable says
// the error should not be retried.
func withRetry(ctx context.Context, maxRetries int, isRetryable isRetryableFunc, attempt func(attemptNum int) error) error {
	var lastErr error
	for n := 0; n < maxRetries; n++ {
		lastErr = attempt(n)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if n == maxRetries-1 {
			break
		}
		delay := time.Duration(math.Pow(2, float64(n))*float64(time.Second)) + time.Duration(rand.Float64()*float64(time.Second))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("speech: exhausted %d retries: %w", maxRetries, lastErr)
}

// ErrProviderUnavailable is returned when no STT or TTS provider was wired
// into the Tracker (e.g. no API credentials configured).
var ErrProviderUnavailable = errors.New("speech: provider not configured")
