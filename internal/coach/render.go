package coach

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/corvidlabs/interviewsim/pkg/types"
)

// placeholderPattern matches any remaining {name} token after substitution.
var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// render substitutes every {key} in tmpl with vars[key]. If any placeholder
// remains unfilled, ok is false and the caller should treat the template as
// unusable rather than send partially-filled text to the model.
func render(tmpl string, vars map[string]string) (text string, ok bool) {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	if placeholderPattern.MatchString(out) {
		return "", false
	}
	return out, true
}

// formatHistory renders the last maxMessages turns (0 = all), truncating
// each message body to maxContentLength characters (0 = no truncation), for
// inclusion in an LLM prompt.
func formatHistory(history []types.Message, maxMessages, maxContentLength int) string {
	msgs := history
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}

	var b strings.Builder
	for i, m := range msgs {
		content := m.Content
		if maxContentLength > 0 && len(content) > maxContentLength {
			content = content[:maxContentLength] + "... (truncated)"
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(capitalize(string(m.Role)))
		b.WriteString(": ")
		b.WriteString(content)
	}
	return b.String()
}

// capitalize upper-cases the first rune of s, leaving the rest untouched.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
