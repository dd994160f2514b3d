package speech

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html"
	"strings"
	"sync"
)

// cacheablePhrases are the common interview-opener fragments worth
// caching; any text containing one of them (case-insensitive) is a
// caching candidate.
var cacheablePhrases = []string{
	"hello", "welcome", "thank you", "please", "ready", "starting",
	"let me", "can you", "tell me", "great", "excellent", "good",
}

// maxCacheableTextLen bounds the text length eligible for caching; longer
// utterances are treated as unique and always synthesized.
const maxCacheableTextLen = 100

// shouldCacheText reports whether text is short enough and contains a
// common enough phrase to be worth caching.
func shouldCacheText(text string) bool {
	if len(text) >= maxCacheableTextLen {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range cacheablePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// cacheKey derives a stable cache key from the (text, voice, speed) tuple.
func cacheKey(text, voiceID string, speed float64) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%g", text, voiceID, speed)))
	return hex.EncodeToString(sum[:])
}

// ttsCache is a small, size-bounded in-memory cache of synthesized audio.
// Once full it stops accepting new entries rather than evicting.
type ttsCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	maxSize int
}

func newTTSCache(maxSize int) *ttsCache {
	return &ttsCache{entries: make(map[string][]byte), maxSize: maxSize}
}

func (c *ttsCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *ttsCache) put(key string, audio []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return
	}
	if len(c.entries) >= c.maxSize {
		return
	}
	c.entries[key] = audio
}

// prepareSSML HTML-escapes text, prepends a 250ms silent break so the first
// words of synthesis are not clipped, and wraps the result in a prosody
// rate tag derived from speedFactor (clamped 0.5-2.0, mapped linearly to
// 50%-200%).
func prepareSSML(text string, speedFactor float64) string {
	if speedFactor < 0.5 {
		speedFactor = 0.5
	}
	if speedFactor > 2.0 {
		speedFactor = 2.0
	}
	ratePct := int(speedFactor * 100)
	escaped := html.EscapeString(text)
	return fmt.Sprintf(`<speak><break time="250ms"/><prosody rate="%d%%">%s</prosody></speak>`, ratePct, escaped)
}
