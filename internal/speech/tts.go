package speech

import (
	"context"
	"fmt"

	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/pkg/provider/tts"
)

// SynthesizeSpeech prepares SSML for text, serves a cache hit if one
// exists, and otherwise acquires a TTS Rate Governor slot and synthesizes
// with bounded retries. The returned bytes are the fully buffered audio.
func (t *Tracker) SynthesizeSpeech(ctx context.Context, text, voiceID string, speed float64) ([]byte, error) {
	if t.ttsProv == nil {
		return nil, ErrProviderUnavailable
	}

	cacheable := shouldCacheText(text)
	var key string
	if cacheable {
		key = cacheKey(text, voiceID, speed)
		if audio, ok := t.cache.get(key); ok {
			return audio, nil
		}
	}

	release, err := t.governor.Acquire(ctx, ratelimit.ProviderTTS)
	if err != nil {
		return nil, ratelimit.ErrCapacityExhausted
	}
	defer release()

	req := tts.Request{SSML: prepareSSML(text, speed), Voice: voiceID, Speed: speed}

	var audio []byte
	attemptErr := withRetry(ctx, t.maxRetries, retryableAlways, func(int) error {
		result, err := t.ttsProv.Synthesize(ctx, req)
		if err != nil {
			return err
		}
		audio = result
		return nil
	})
	if attemptErr != nil {
		return nil, fmt.Errorf("speech: synthesis failed: %w", attemptErr)
	}

	if cacheable {
		t.cache.put(key, audio)
	}
	return audio, nil
}

// SynthesizeSpeechStream is the streamed counterpart to SynthesizeSpeech:
// it skips the cache (streamed responses are not cached) and hands back the
// provider's audio channel directly so the HTTP layer can forward chunks to
// the client as they arrive. The caller must call the returned release func
// exactly once after fully draining the channel.
func (t *Tracker) SynthesizeSpeechStream(ctx context.Context, text, voiceID string, speed float64) (<-chan []byte, func(), error) {
	if t.ttsProv == nil {
		return nil, nil, ErrProviderUnavailable
	}

	release, err := t.governor.Acquire(ctx, ratelimit.ProviderTTS)
	if err != nil {
		return nil, nil, ratelimit.ErrCapacityExhausted
	}

	req := tts.Request{SSML: prepareSSML(text, speed), Voice: voiceID, Speed: speed}
	audioCh, err := t.ttsProv.SynthesizeStream(ctx, req)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("speech: starting streamed synthesis: %w", err)
	}
	return audioCh, release, nil
}
