package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corvidlabs/interviewsim/internal/llmjson"
	"github.com/corvidlabs/interviewsim/pkg/provider/llm"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

const defaultValueNotProvided = "Not provided."

// summaryDecision mirrors the JSON shape the final-summary LLM call must
// produce; ResourceSearchTopics drives the Search Tool fan-out.
type summaryDecision struct {
	PatternsTendencies    string   `json:"patterns_tendencies"`
	Strengths             string   `json:"strengths"`
	Weaknesses            string   `json:"weaknesses"`
	ImprovementFocusAreas string   `json:"improvement_focus_areas"`
	ResourceSearchTopics  []string `json:"resource_search_topics"`
}

func defaultSummaryDecision() summaryDecision {
	return summaryDecision{
		PatternsTendencies:    DefaultPatternsTendencies,
		Strengths:             DefaultStrengths,
		Weaknesses:            DefaultWeaknesses,
		ImprovementFocusAreas: DefaultImprovementFocusAreas,
	}
}

// Evaluator is the Coach agent: it turns a single answer into conversational
// feedback, and a completed interview into a structured summary with
// recommended learning resources.
type Evaluator struct {
	provider       llm.Provider
	searchTool     *SearchTool
	resumeContent  string
	jobDescription string
	logger         *slog.Logger
}

// NewEvaluator constructs a Coach evaluator. searchTool may be nil, in which
// case final summaries always fall back to the static resource list.
func NewEvaluator(provider llm.Provider, searchTool *SearchTool, resumeContent, jobDescription string, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		provider:       provider,
		searchTool:     searchTool,
		resumeContent:  resumeContent,
		jobDescription: jobDescription,
		logger:         logger,
	}
}

// Evaluate produces conversational feedback for a single question/answer
// pair. It never returns an error: any failure yields FeedbackUnavailable.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer, justification string, history []types.Message) string {
	if e.provider == nil {
		return FeedbackUnavailable
	}

	vars := map[string]string{
		"resume_content":       valueOrDefault(e.resumeContent, defaultValueNotProvided),
		"job_description":      valueOrDefault(e.jobDescription, defaultValueNotProvided),
		"conversation_history": formatHistory(history, 10, 200),
		"question":             valueOrDefault(question, "No question provided."),
		"answer":               valueOrDefault(answer, "No answer provided."),
		"justification":        valueOrDefault(justification, "No justification provided."),
	}

	prompt, ok := render(evaluateAnswerTemplate, vars)
	if !ok {
		e.logger.Error("coach: evaluate_answer template rendering failed")
		return FeedbackUnavailable
	}

	resp, err := e.provider.Generate(ctx, llm.Request{
		System:   "You are an expert interview coach.",
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil || resp == nil || strings.TrimSpace(resp.Text) == "" {
		e.logger.Error("coach: evaluate_answer LLM call failed", "error", err)
		return FeedbackUnavailable
	}

	return resp.Text
}

// FinalSummary produces the post-interview coaching artifact: patterns,
// strengths, weaknesses, improvement areas, and a list of recommended
// learning resources discovered from the identified weaknesses.
func (e *Evaluator) FinalSummary(ctx context.Context, history []types.Message) types.Summary {
	if len(history) == 0 {
		e.logger.Error("coach: final summary requested with no conversation history")
		return toSummary(defaultSummaryDecision(), fallbackResources)
	}
	if e.provider == nil {
		return toSummary(defaultSummaryDecision(), fallbackResources)
	}

	vars := map[string]string{
		"resume_content":       valueOrDefault(e.resumeContent, defaultValueNotProvided),
		"job_description":      valueOrDefault(e.jobDescription, defaultValueNotProvided),
		"conversation_history": formatHistory(history, 0, 0),
	}

	prompt, ok := render(finalSummaryTemplate, vars)
	if !ok {
		e.logger.Error("coach: final_summary template rendering failed")
		return toSummary(defaultSummaryDecision(), fallbackResources)
	}

	resp, err := e.provider.Generate(ctx, llm.Request{
		System:   "You are an expert interview coach.",
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil || resp == nil {
		e.logger.Error("coach: final_summary LLM call failed", "error", err)
		return toSummary(defaultSummaryDecision(), fallbackResources)
	}

	decision := llmjson.Decode(resp.Text, defaultSummaryDecision())

	resources := e.generateResourcesWithReasoning(ctx, decision)
	if len(resources) == 0 {
		e.logger.Info("coach: no resources generated, falling back to static list")
		resources = fallbackResources
	}

	return toSummary(decision, resources)
}

func toSummary(d summaryDecision, resources []types.Resource) types.Summary {
	return types.Summary{
		PatternsTendencies:    d.PatternsTendencies,
		Strengths:             d.Strengths,
		Weaknesses:            d.Weaknesses,
		ImprovementFocusAreas: d.ImprovementFocusAreas,
		RecommendedResources:  resources,
	}
}

// generateResourcesWithReasoning searches for learning resources for up to
// maxSearchTopics topics and attaches a reasoning string to each.
func (e *Evaluator) generateResourcesWithReasoning(ctx context.Context, decision summaryDecision) []types.Resource {
	topics := decision.ResourceSearchTopics
	if len(topics) == 0 || e.searchTool == nil {
		return nil
	}
	if len(topics) > maxSearchTopics {
		topics = topics[:maxSearchTopics]
	}

	perTopic := 1
	if v := maxTotalResources / len(topics); v > perTopic {
		perTopic = v
	}
	totalCap := maxTotalResources

	resources := make([]types.Resource, 0, totalCap)
	for _, topic := range topics {
		if len(resources) >= totalCap {
			break
		}
		proficiency := determineProficiencyLevel(decision.Weaknesses, topic)

		found := e.searchTool.Search(ctx, topic, proficiency, "", perTopic)
		for _, r := range found {
			if len(resources) >= totalCap {
				break
			}
			r.Reasoning = resourceReasoning(r.ResourceType, topic, decision.Weaknesses)
			resources = append(resources, r)
		}
	}
	return resources
}

// determineProficiencyLevel picks a search proficiency level from keyword
// matches in the summary's weaknesses text.
func determineProficiencyLevel(weaknesses, topic string) string {
	if weaknesses == "" {
		return "intermediate"
	}
	w := strings.ToLower(weaknesses)
	t := strings.ToLower(topic)

	if containsAny(w, []string{"basic", "fundamental", "foundation", "beginner"}) {
		return "beginner"
	}
	if containsAny(w, []string{"advanced", "complex", "deep", "sophisticated"}) {
		return "advanced"
	}
	if strings.Contains(w, t) {
		return "beginner"
	}
	return "intermediate"
}

var resourceReasoningTemplates = map[types.ResourceType]string{
	types.ResourceCourse:        "This course will help you build foundational knowledge in %s",
	types.ResourceTutorial:      "This tutorial provides step-by-step guidance to improve your %s skills",
	types.ResourceDocumentation: "This official documentation will deepen your understanding of %s",
	types.ResourceArticle:       "This article covers key concepts that will strengthen your %s knowledge",
	types.ResourceVideo:         "This video offers visual learning to enhance your %s abilities",
	types.ResourceInteractive:   "This hands-on resource will let you practice %s skills directly",
	types.ResourceCommunity:     "This community resource provides ongoing support for learning %s",
}

// resourceReasoning builds the per-resource explanation shown alongside a
// recommendation, tailored to resource type and topic.
func resourceReasoning(rt types.ResourceType, topic, weaknesses string) string {
	tmpl, ok := resourceReasoningTemplates[rt]
	if !ok {
		tmpl = "This resource will help you improve your %s skills"
	}
	reasoning := fmt.Sprintf(tmpl, topic)
	if weaknesses != "" && strings.Contains(strings.ToLower(weaknesses), strings.ToLower(topic)) {
		reasoning += ", addressing the gaps identified in your interview performance"
	}
	return reasoning
}

func valueOrDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
