// Package llmjson defensively decodes structured data out of free-form LLM
// completion text. Models are asked for JSON but routinely wrap it in a
// fenced code block, add leading prose, or simply return malformed output;
// callers need a typed default rather than a propagated parse error.
package llmjson

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// fencedBlock matches a ```json ... ``` or bare ``` ... ``` code fence and
// captures its body.
var fencedBlock = regexp.MustCompile("(?is)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Decode attempts, in order: a fenced-code-block extraction followed by
// strict JSON decoding of its contents, then a strict JSON decode of the
// raw string. If both attempts fail, it logs the failure and returns def
// unchanged, so callers always get a usable value instead of an error.
func Decode[T any](raw string, def T) T {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		body := strings.TrimSpace(m[1])
		var out T
		if err := json.Unmarshal([]byte(body), &out); err == nil {
			return out
		}
		slog.Debug("llmjson: fenced block did not parse as strict JSON, trying raw string")
	}

	var out T
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err == nil {
		return out
	}

	slog.Error("llmjson: failed to parse response as JSON, returning default", "preview", preview(raw))
	return def
}

// preview bounds a string to a safe log length.
func preview(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
