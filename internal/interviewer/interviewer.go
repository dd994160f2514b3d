// Package interviewer implements the Interviewer State Machine: question
// bank construction, introduction delivery, and the LLM-backed next-action
// decision that drives an interview turn by turn.
package interviewer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/corvidlabs/interviewsim/internal/llmjson"
	"github.com/corvidlabs/interviewsim/internal/timemgr"
	"github.com/corvidlabs/interviewsim/pkg/provider/llm"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

// nextActionDecision is the defensive-JSON shape expected from the LLM's
// next-action prompt.
type nextActionDecision struct {
	ActionType         string   `json:"action_type"`
	NextQuestionText   *string  `json:"next_question_text"`
	Justification      string   `json:"justification"`
	NewlyCoveredTopics []string `json:"newly_covered_topics"`
}

func defaultDecision(fallback string) nextActionDecision {
	q := fallback
	return nextActionDecision{
		ActionType:       string(types.ActionAskNewQuestion),
		NextQuestionText: &q,
		Justification:    "processing error",
	}
}

// Interviewer drives one session's interview flow. Not safe for concurrent
// use directly; callers serialize access via the Session Orchestrator's
// per-session mutex.
type Interviewer struct {
	mu sync.Mutex

	provider llm.Provider
	logger   *slog.Logger

	config types.SessionConfig
	phase  types.InterviewPhase

	questionBank    []string
	currentQuestion string
	askedCount      int
	coveredTopics   map[string]bool

	timeMgr *timemgr.Manager
}

// New constructs an Interviewer for cfg. provider may be nil: the question
// bank is then built from templates only, and every next-action decision
// falls back to the default question.
func New(provider llm.Provider, cfg types.SessionConfig, logger *slog.Logger) *Interviewer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Normalize()
	iv := &Interviewer{
		provider:      provider,
		logger:        logger,
		config:        cfg,
		phase:         types.PhaseInitializing,
		coveredTopics: make(map[string]bool),
	}
	if cfg.TimeBased {
		iv.timeMgr = timemgr.New(durationFromMinutes(cfg.InterviewDurationMins))
	}
	return iv
}

func durationFromMinutes(mins int) time.Duration {
	if mins <= 0 {
		mins = 30
	}
	return time.Duration(mins) * time.Minute
}

// OnConfigUpdate idempotently applies a new session configuration. It may
// instantiate a Time Manager when mode switches to time-based and none
// exists yet, but never replaces an already-running one.
func (iv *Interviewer) OnConfigUpdate(cfg types.SessionConfig) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	cfg.Normalize()
	iv.config = cfg
	if cfg.TimeBased && iv.timeMgr == nil {
		iv.timeMgr = timemgr.New(durationFromMinutes(cfg.InterviewDurationMins))
	}
}

// Reset returns the Interviewer to its initial phase, clearing the question
// bank, covered topics, and asked count, as on a session reset.
func (iv *Interviewer) Reset() {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.phase = types.PhaseInitializing
	iv.questionBank = nil
	iv.currentQuestion = ""
	iv.askedCount = 0
	iv.coveredTopics = make(map[string]bool)
	iv.timeMgr = nil
	if iv.config.TimeBased {
		iv.timeMgr = timemgr.New(durationFromMinutes(iv.config.InterviewDurationMins))
	}
}

// Process advances the interview by one turn given the latest snapshot of
// conversation history. It performs at most one external LLM call.
func (iv *Interviewer) Process(ctx context.Context, actx types.AgentContext) types.AgentResponse {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	switch iv.phase {
	case types.PhaseInitializing:
		return iv.handleInitialization(ctx)
	case types.PhaseIntroducing:
		return iv.handleIntroduction()
	case types.PhaseQuestioning:
		return iv.handleQuestioning(ctx, actx)
	default:
		return types.AgentResponse{
			Content:      InterviewConclusion,
			ResponseType: types.ResponseClosing,
			Agent:        types.AgentInterviewer,
		}
	}
}

func (iv *Interviewer) handleInitialization(ctx context.Context) types.AgentResponse {
	iv.questionBank = buildQuestionBank(ctx, iv.provider, iv.config)
	iv.phase = types.PhaseIntroducing
	if iv.timeMgr != nil {
		iv.timeMgr.Start()
	}
	return iv.handleIntroduction()
}

func (iv *Interviewer) handleIntroduction() types.AgentResponse {
	text, ok := render(introTemplateFor(iv.config.Style), map[string]string{
		"job_role":            valueOrDefault(iv.config.JobRole, DefaultJobRole),
		"company_name":        valueOrDefault(iv.config.CompanyName, DefaultCompanyName),
		"interview_duration":  durationPhrase(iv.config),
	})
	if !ok {
		text = fmt.Sprintf("Welcome, let's begin the interview for the %s position.", valueOrDefault(iv.config.JobRole, DefaultJobRole))
	}

	iv.phase = types.PhaseQuestioning
	if len(iv.questionBank) > 0 {
		iv.currentQuestion = iv.questionBank[0]
		iv.askedCount = 1
	}

	return types.AgentResponse{
		Content:      text,
		ResponseType: types.ResponseIntroduction,
		Agent:        types.AgentInterviewer,
	}
}

func introTemplateFor(style types.InterviewStyle) string {
	if t, ok := introductionTemplates[style]; ok {
		return t
	}
	return introductionTemplates[types.StyleFormal]
}

func durationPhrase(cfg types.SessionConfig) string {
	if cfg.TimeBased && cfg.InterviewDurationMins > 0 {
		return fmt.Sprintf("%d minutes", cfg.InterviewDurationMins)
	}
	return fmt.Sprintf("%d questions", cfg.TargetQuestionCount)
}

func (iv *Interviewer) handleQuestioning(ctx context.Context, actx types.AgentContext) types.AgentResponse {
	decision := iv.decideNextAction(ctx, actx)

	for _, topic := range decision.NewlyCoveredTopics {
		iv.coveredTopics[topic] = true
	}

	if decision.ActionType == string(types.ActionEndInterview) {
		iv.phase = types.PhaseCompleted
		if iv.timeMgr != nil {
			iv.timeMgr.Stop()
		}
		return types.AgentResponse{
			Content:      InterviewConclusion,
			ResponseType: types.ResponseClosing,
			Agent:        types.AgentInterviewer,
			Metadata:     map[string]any{"justification": decision.Justification},
		}
	}

	question := DefaultFallbackQuestion
	if decision.NextQuestionText != nil && strings.TrimSpace(*decision.NextQuestionText) != "" {
		question = *decision.NextQuestionText
	} else if len(iv.questionBank) > iv.askedCount {
		question = iv.questionBank[iv.askedCount]
	}

	iv.currentQuestion = question
	iv.askedCount++

	return types.AgentResponse{
		Content:      question,
		ResponseType: types.ResponseQuestion,
		Agent:        types.AgentInterviewer,
		Metadata:     map[string]any{"justification": decision.Justification},
	}
}

// decideNextAction packages interview state for the LLM, parses the
// defensive-JSON response, and applies the guard rules: invalid action
// types, time-based forced/rejected endings, and count-based rejected
// endings are all normalized to a safe default here.
func (iv *Interviewer) decideNextAction(ctx context.Context, actx types.AgentContext) nextActionDecision {
	lastAnswer := lastUserMessage(actx.History)

	var decision nextActionDecision
	if iv.provider == nil {
		decision = defaultDecision(DefaultFallbackQuestion)
	} else {
		prompt := iv.buildDecisionPrompt(actx, lastAnswer)
		resp, err := iv.provider.Generate(ctx, llm.Request{
			Messages:    []llm.Message{{Role: "user", Content: prompt}},
			Temperature: 0.7,
		})
		if err != nil || resp == nil {
			iv.logger.Warn("interviewer: next-action LLM call failed", "error", err)
			decision = defaultDecision(DefaultFallbackQuestion)
		} else {
			decision = llmjson.Decode(resp.Text, defaultDecision(DefaultFallbackQuestion))
		}
	}

	return iv.applyGuards(decision)
}

func (iv *Interviewer) buildDecisionPrompt(actx types.AgentContext, lastAnswer string) string {
	vars := map[string]string{
		"job_role":               valueOrDefault(iv.config.JobRole, DefaultJobRole),
		"job_description":        valueOrDefault(iv.config.JobDescription, DefaultValueNotProvided),
		"resume_content":         valueOrDefault(iv.config.ResumeText, DefaultValueNotProvided),
		"interview_style":        string(iv.config.Style),
		"target_question_count":  fmt.Sprintf("%d", iv.config.TargetQuestionCount),
		"questions_asked_count":  fmt.Sprintf("%d", iv.askedCount),
		"areas_covered_so_far":   coveredTopicsList(iv.coveredTopics),
		"previous_question":     valueOrDefault(iv.currentQuestion, "None"),
		"candidate_answer":      valueOrDefault(lastAnswer, "None"),
		"conversation_history":  formatConversationHistory(historyExcludingLastUserTurn(actx.History), 10, 200),
		"difficulty_level":      valueOrDefault(iv.config.Difficulty, "medium"),
	}

	if iv.timeMgr == nil {
		text, _ := render(nextActionTemplate, vars)
		return text
	}

	tc := iv.timeMgr.TimeContext()
	vars["current_time_phase"] = string(tc.Phase)
	vars["time_progress_percentage"] = fmt.Sprintf("%.0f", tc.ProgressPercent)
	vars["remaining_minutes"] = fmt.Sprintf("%.1f", tc.RemainingMinutes)
	vars["time_pressure"] = string(tc.Pressure)
	vars["time_based_suggestions"] = strings.Join(tc.SuggestedActions, "; ")

	text, _ := render(timeAwareNextActionTemplate, vars)
	return text
}

func (iv *Interviewer) applyGuards(decision nextActionDecision) nextActionDecision {
	switch types.ActionType(decision.ActionType) {
	case types.ActionAskFollowUp, types.ActionAskNewQuestion, types.ActionEndInterview:
	default:
		decision = defaultDecision(DefaultFallbackQuestion)
	}

	if decision.NewlyCoveredTopics == nil {
		decision.NewlyCoveredTopics = []string{}
	}

	if iv.timeMgr != nil {
		tc := iv.timeMgr.TimeContext()
		if tc.RemainingMinutes <= 0 {
			decision.ActionType = string(types.ActionEndInterview)
		} else if decision.ActionType == string(types.ActionEndInterview) && tc.ProgressPercent/100 < timeBasedEndProgressThreshold {
			decision = rejectEnd(decision)
		}
	} else if decision.ActionType == string(types.ActionEndInterview) && iv.askedCount < MinQuestionCount {
		decision = rejectEnd(decision)
	}

	return decision
}

// rejectEnd converts a premature end_interview into ask_new_question with a
// fallback question, preserving newly-covered topics.
func rejectEnd(decision nextActionDecision) nextActionDecision {
	q := DefaultFallbackQuestion
	decision.ActionType = string(types.ActionAskNewQuestion)
	decision.NextQuestionText = &q
	return decision
}

func coveredTopicsList(topics map[string]bool) string {
	if len(topics) == 0 {
		return "None"
	}
	out := make([]string, 0, len(topics))
	for t := range topics {
		out = append(out, t)
	}
	return strings.Join(out, ", ")
}

func lastUserMessage(history []types.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

// historyExcludingLastUserTurn drops the most recent user message, per
// spec's "formatted history (excluding last user turn)": the candidate's
// latest answer is already passed to the prompt as its own variable, so
// including it again in the history block would be redundant.
func historyExcludingLastUserTurn(history []types.Message) []types.Message {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleUser {
			out := make([]types.Message, 0, len(history)-1)
			out = append(out, history[:i]...)
			out = append(out, history[i+1:]...)
			return out
		}
	}
	return history
}

// formatConversationHistory renders the last maxMessages turns (0 = all),
// truncating each message body to maxContentLength characters (0 = no
// truncation), for inclusion in an LLM prompt.
func formatConversationHistory(history []types.Message, maxMessages, maxContentLength int) string {
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

// Phase reports the interviewer's current state-machine phase.
func (iv *Interviewer) Phase() types.InterviewPhase {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.phase
}

// CurrentQuestion reports the most recently asked question, if any.
func (iv *Interviewer) CurrentQuestion() string {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.currentQuestion
}
