package interviewer

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/corvidlabs/interviewsim/internal/llmjson"
	"github.com/corvidlabs/interviewsim/pkg/provider/llm"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

// placeholderKeys names the categories whose values fill the placeholders
// of question templates.
var placeholderKeys = []string{"technology", "scenario", "problem_type", "challenge", "quality_aspect"}

// buildQuestionBank assembles the session's question list: a fixed opening
// question, up to (target-1) LLM-generated job-specific questions when
// role/description/resume are all present, backfilled with templated
// generic questions, deduplicated and truncated to the target count.
func buildQuestionBank(ctx context.Context, provider llm.Provider, cfg types.SessionConfig) []string {
	target := cfg.TargetQuestionCount
	if target <= 0 {
		target = 15
	}

	bank := []string{DefaultOpeningQuestion}

	if canGenerateSpecificQuestions(cfg) && provider != nil {
		need := target - len(bank)
		if need > 0 {
			bank = append(bank, generateJobSpecificQuestions(ctx, provider, cfg, need)...)
		}
	}

	if len(bank) < target {
		bank = append(bank, genericQuestions(cfg, target-len(bank))...)
	}

	bank = dedupePreserveOrder(bank)
	if len(bank) > target {
		bank = bank[:target]
	}
	return bank
}

func canGenerateSpecificQuestions(cfg types.SessionConfig) bool {
	return strings.TrimSpace(cfg.JobRole) != "" &&
		strings.TrimSpace(cfg.JobDescription) != "" &&
		strings.TrimSpace(cfg.ResumeText) != ""
}

// generateJobSpecificQuestions asks the LLM for a JSON list of strings. Any
// failure (provider error or malformed response) yields an empty slice so
// the caller backfills with generic templated questions instead.
func generateJobSpecificQuestions(ctx context.Context, provider llm.Provider, cfg types.SessionConfig, count int) []string {
	prompt, ok := render(jobSpecificTemplate, map[string]string{
		"job_role":         valueOrDefault(cfg.JobRole, DefaultJobRole),
		"job_description":  valueOrDefault(cfg.JobDescription, DefaultValueNotProvided),
		"resume_content":   valueOrDefault(cfg.ResumeText, DefaultValueNotProvided),
		"num_questions":    fmt.Sprintf("%d", count),
		"difficulty_level": valueOrDefault(cfg.Difficulty, "medium"),
		"interview_style":  string(cfg.Style),
	})
	if !ok {
		return nil
	}

	resp, err := provider.Generate(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.7,
	})
	if err != nil || resp == nil {
		return nil
	}

	questions := llmjson.Decode(resp.Text, []string(nil))
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions
}

// genericQuestions fills count slots from style-keyed placeholder templates,
// falling back to the "Software Engineer" variable set when the configured
// role has no dedicated entry, then to role-agnostic general questions.
// Templates that cannot be fully substituted are skipped silently.
func genericQuestions(cfg types.SessionConfig, count int) []string {
	role := valueOrDefault(cfg.JobRole, DefaultJobRole)
	style := cfg.Style
	if _, ok := questionTemplates[style]; !ok {
		style = types.StyleFormal
	}

	vars, ok := templateVariables[cfg.JobRole]
	if !ok {
		vars = templateVariables[defaultRole]
	}

	templates := append([]string(nil), questionTemplates[style]...)
	rand.Shuffle(len(templates), func(i, j int) { templates[i], templates[j] = templates[j], templates[i] })

	var out []string
	for _, tmpl := range templates {
		if len(out) >= count {
			break
		}
		values := make(map[string]string, len(placeholderKeys))
		for _, key := range placeholderKeys {
			if options := vars[key]; len(options) > 0 {
				values[key] = options[rand.Intn(len(options))]
			}
		}
		q, ok := render(tmpl, values)
		if !ok {
			continue
		}
		out = append(out, q)
	}

	for _, tmpl := range generalQuestions {
		if len(out) >= count {
			break
		}
		q, ok := render(tmpl, map[string]string{"job_role": role})
		if !ok {
			continue
		}
		out = append(out, q)
	}

	return out
}

func dedupePreserveOrder(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func valueOrDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
