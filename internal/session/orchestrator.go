// Package session implements the Session Orchestrator (turn pipeline: user
// message -> interviewer reply -> coach per-turn feedback, plus the
// end-of-interview background summary task) and the Session Registry
// (active-session cache, per-session locking, idle eviction).
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/corvidlabs/interviewsim/internal/eventbus"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

// SummaryStatus reports the lifecycle of the background final-summary task.
type SummaryStatus string

const (
	SummaryGenerating SummaryStatus = "generating"
	SummaryCompleted  SummaryStatus = "completed"
	SummaryError      SummaryStatus = "error"
)

const agentLoadFailedMessage = "Interviewer agent failed to load"

// EndInterviewResult is returned by Orchestrator.EndInterview.
//
// CoachingSummary is always nil: the client must poll FinalSummary
// separately through the status endpoint defined by the API surface. This
// is deliberate, not an oversight: it forces the frontend into the polling
// contract rather than racing a summary that may still be generating.
type EndInterviewResult struct {
	Status             string                `json:"status"`
	PerTurnFeedback    []types.FeedbackEntry `json:"per_turn_feedback"`
	CoachingSummary    *types.Summary        `json:"coaching_summary"`
	FinalSummaryStatus SummaryStatus         `json:"final_summary_status"`
	HasImmediateData   bool                  `json:"has_immediate_data"`
}

// InterviewerAgent is the subset of *interviewer.Interviewer the Orchestrator
// depends on; narrowed to an interface so tests can supply a fake.
type InterviewerAgent interface {
	Process(ctx context.Context, actx types.AgentContext) types.AgentResponse
	Reset()
}

// CoachAgent is the subset of *coach.Evaluator the Orchestrator depends on.
type CoachAgent interface {
	Evaluate(ctx context.Context, question, answer, justification string, history []types.Message) string
	FinalSummary(ctx context.Context, history []types.Message) types.Summary
}

// Orchestrator drives one session's turn pipeline and its background
// summary task.
//
// All exported methods except the background summary goroutine are expected
// to be serialized by the Session Registry's per-session mutex; Orchestrator
// additionally guards its own fields with fieldsMu so that the background
// summary task, which runs without that mutex held, never races a
// concurrent ProcessMessage or Snapshot call.
type Orchestrator struct {
	sessionID   string
	ownerUserID string
	bus         *eventbus.Bus
	logger      *slog.Logger

	newInterviewer func() InterviewerAgent
	newCoach       func() CoachAgent

	fieldsMu sync.Mutex

	config            types.SessionConfig
	history           []types.Message
	feedbackLog       []types.FeedbackEntry
	finalSummary      *types.Summary
	summaryGenerating bool
	needsSave         bool
	status            types.SessionStatus
	stats             types.SessionStats

	interviewer InterviewerAgent
	coach       CoachAgent
}

// NewOrchestrator constructs an Orchestrator for a brand-new session. newInterviewer and
// newCoach build the two lazily-instantiated agents on first use; callers
// pass closures that capture the session's LLM provider and config.
func NewOrchestrator(sessionID, ownerUserID string, cfg types.SessionConfig, bus *eventbus.Bus, logger *slog.Logger, newInterviewer func() InterviewerAgent, newCoach func() CoachAgent) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Normalize()
	return &Orchestrator{
		sessionID:      sessionID,
		ownerUserID:    ownerUserID,
		bus:            bus,
		logger:         logger.With("session_id", sessionID),
		newInterviewer: newInterviewer,
		newCoach:       newCoach,
		config:         cfg,
		status:         types.SessionActive,
	}
}

func (o *Orchestrator) getInterviewer() InterviewerAgent {
	if o.interviewer == nil {
		o.interviewer = o.newInterviewer()
	}
	return o.interviewer
}

func (o *Orchestrator) getCoach() CoachAgent {
	if o.coach == nil {
		o.coach = o.newCoach()
	}
	return o.coach
}

func (o *Orchestrator) publish(eventType eventbus.EventType, payload map[string]any) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(eventbus.Event{Type: eventType, SessionID: o.sessionID, Payload: payload})
}

// ProcessMessage appends the user's message to history, invokes the
// Interviewer for a reply, and generates per-turn coaching feedback for the
// answer the user just gave. Coach failures never propagate: they are
// logged and recorded as an "unavailable" feedback entry.
func (o *Orchestrator) ProcessMessage(ctx context.Context, message string) types.Message {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()

	now := time.Now()
	userMsg := types.Message{Role: types.RoleUser, Content: message, Timestamp: now}
	o.history = append(o.history, userMsg)
	o.publish(eventbus.EventUserMessage, map[string]any{"message": userMsg})

	reply, err := o.getInterviewerReply(ctx)
	if err != nil {
		return o.handleProcessingError(err)
	}

	o.generateCoachingFeedback(ctx, userMsg)

	return reply
}

func (o *Orchestrator) getInterviewerReply(ctx context.Context) (types.Message, error) {
	agent := o.getInterviewer()
	if agent == nil {
		return types.Message{}, fmt.Errorf("session: %s", agentLoadFailedMessage)
	}

	actx := types.AgentContext{SessionID: o.sessionID, Config: o.config, History: o.history}
	resp := agent.Process(ctx, actx)
	o.stats.APICallCount++

	reply := types.Message{
		Role:         types.RoleAssistant,
		Content:      resp.Content,
		Timestamp:    time.Now(),
		Agent:        types.AgentInterviewer,
		ResponseType: resp.ResponseType,
		Metadata:     resp.Metadata,
	}
	o.history = append(o.history, reply)
	o.stats.MessageCount = len(o.history)
	o.publish(eventbus.EventAssistantResponse, map[string]any{"response": reply})

	return reply, nil
}

// generateCoachingFeedback locates the most recent interviewer message in
// history (scanning in reverse) and evaluates the user's answer against it.
// Any failure is recorded as unavailable rather than surfaced to the caller.
func (o *Orchestrator) generateCoachingFeedback(ctx context.Context, userMsg types.Message) {
	question := o.lastInterviewerMessage()
	if question == "" || userMsg.Content == "" {
		return
	}

	agent := o.getCoach()
	var feedback string
	if agent == nil {
		feedback = "Coaching feedback is currently unavailable."
	} else {
		feedback = agent.Evaluate(ctx, question, userMsg.Content, "", o.filteredHistoryForCoach())
	}

	o.feedbackLog = append(o.feedbackLog, types.FeedbackEntry{
		Question: types.TruncateForFeedback(question),
		Answer:   types.TruncateForFeedback(userMsg.Content),
		Feedback: feedback,
	})
}

func (o *Orchestrator) lastInterviewerMessage() string {
	for i := len(o.history) - 1; i >= 0; i-- {
		m := o.history[i]
		if m.Role == types.RoleAssistant && m.Agent == types.AgentInterviewer {
			return m.Content
		}
	}
	return ""
}

// filteredHistoryForCoach strips system/error messages and non-conversation
// metadata before handing history to the Coach's prompt builder.
func (o *Orchestrator) filteredHistoryForCoach() []types.Message {
	out := make([]types.Message, 0, len(o.history))
	for _, m := range o.history {
		if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
			continue
		}
		out = append(out, types.Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp, Agent: m.Agent})
	}
	return out
}

func (o *Orchestrator) handleProcessingError(err error) types.Message {
	o.logger.Error("session: error processing message", "error", err)
	o.publish(eventbus.EventError, map[string]any{"error": err.Error(), "session_id": o.sessionID})
	return types.Message{
		Role:         types.RoleSystem,
		Content:      fmt.Sprintf("Error processing request: %s", err),
		Timestamp:    time.Now(),
		ResponseType: types.ResponseError,
		Metadata:     map[string]any{"error": true},
	}
}

// EndInterview publishes SESSION_END and, unless a summary is already
// generating, kicks off the background summary task. The returned result
// never carries the final summary.
func (o *Orchestrator) EndInterview(ctx context.Context) EndInterviewResult {
	o.fieldsMu.Lock()
	o.publish(eventbus.EventSessionEnd, nil)

	feedback := make([]types.FeedbackEntry, len(o.feedbackLog))
	copy(feedback, o.feedbackLog)

	status := SummaryGenerating
	shouldStart := false
	if !o.summaryGenerating {
		o.summaryGenerating = true
		shouldStart = true
	}
	o.fieldsMu.Unlock()

	if shouldStart {
		go o.generateFinalSummaryBackground(ctx)
		o.logger.Info("session: started background final summary generation")
	}

	return EndInterviewResult{
		Status:             "Interview Ended",
		PerTurnFeedback:    feedback,
		CoachingSummary:    nil,
		FinalSummaryStatus: status,
		HasImmediateData:   true,
	}
}

// generateFinalSummaryBackground is the async task body scheduled by
// EndInterview. It always clears summaryGenerating and sets needsSave in a
// deferred finalization step, regardless of success or failure, and always
// marks the session completed; an error summary still ends the session.
func (o *Orchestrator) generateFinalSummaryBackground(ctx context.Context) {
	defer func() {
		o.fieldsMu.Lock()
		o.summaryGenerating = false
		o.needsSave = true
		o.fieldsMu.Unlock()
	}()

	o.fieldsMu.Lock()
	history := make([]types.Message, len(o.history))
	copy(history, o.history)
	o.fieldsMu.Unlock()

	if len(history) == 0 {
		o.logger.Error("session: final summary requested with empty history")
		o.fieldsMu.Lock()
		o.finalSummary = &types.Summary{Error: "conversation history is empty"}
		o.status = types.SessionCompleted
		o.fieldsMu.Unlock()
		return
	}

	agent := o.getCoachForBackground()
	if agent == nil {
		o.logger.Error("session: coach agent not available for final summary generation")
		o.fieldsMu.Lock()
		o.finalSummary = &types.Summary{Error: "coach agent not available"}
		o.status = types.SessionCompleted
		o.fieldsMu.Unlock()
		return
	}

	summary := agent.FinalSummary(ctx, history)

	o.fieldsMu.Lock()
	o.finalSummary = &summary
	o.status = types.SessionCompleted
	if summary.Error == "" {
		now := time.Now()
		o.stats.ResourceGenerationAt = &now
	}
	o.fieldsMu.Unlock()
}

// getCoachForBackground fetches (lazily constructing if necessary) the coach
// agent under the fields lock, then releases it before the summary call so
// the LLM round trip does not block concurrent ProcessMessage calls.
func (o *Orchestrator) getCoachForBackground() CoachAgent {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()
	return o.getCoach()
}

// ResetSession clears history, feedback log, final summary, and flags, and
// re-publishes SESSION_RESET. An already-built interviewer is reset in place
// through its Reset method; the coach is discarded and rebuilt on next use.
func (o *Orchestrator) ResetSession() {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()

	o.history = nil
	o.feedbackLog = nil
	o.finalSummary = nil
	o.summaryGenerating = false
	o.needsSave = false
	o.stats = types.SessionStats{}
	o.status = types.SessionActive

	if o.interviewer != nil {
		o.interviewer.Reset()
	}
	o.coach = nil

	o.publish(eventbus.EventSessionReset, nil)
}

// Snapshot returns the current state as a types.SessionRecord, suitable for
// persisting through the Store Gateway.
func (o *Orchestrator) Snapshot(ownerUserID string) types.SessionRecord {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()

	history := make([]types.Message, len(o.history))
	copy(history, o.history)
	feedback := make([]types.FeedbackEntry, len(o.feedbackLog))
	copy(feedback, o.feedbackLog)

	var summary *types.Summary
	if o.finalSummary != nil {
		s := *o.finalSummary
		summary = &s
	}

	return types.SessionRecord{
		SessionID:         o.sessionID,
		OwnerUserID:       ownerUserID,
		Config:            o.config,
		History:           history,
		FeedbackLog:       feedback,
		FinalSummary:      summary,
		Stats:             o.stats,
		Status:            o.status,
		SummaryGenerating: o.summaryGenerating,
		NeedsSave:         o.needsSave,
	}
}

// Restore rebuilds in-memory state from a persisted record. It does not
// reconstruct lazily-instantiated agents; they are created on first use as
// usual.
func (o *Orchestrator) Restore(rec *types.SessionRecord) {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()

	o.config = rec.Config
	o.config.Normalize()
	o.history = append([]types.Message(nil), rec.History...)
	o.feedbackLog = append([]types.FeedbackEntry(nil), rec.FeedbackLog...)
	o.finalSummary = rec.FinalSummary
	o.summaryGenerating = rec.SummaryGenerating
	o.needsSave = rec.NeedsSave
	o.stats = rec.Stats
	o.status = rec.Status
	if o.status == "" {
		o.status = types.SessionActive
	}
}

// History returns a copy of the conversation so far.
func (o *Orchestrator) History() []types.Message {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()
	out := make([]types.Message, len(o.history))
	copy(out, o.history)
	return out
}

// Stats returns the session's counters.
func (o *Orchestrator) Stats() types.SessionStats {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()
	return o.stats
}

// Status reports the session's lifecycle status.
func (o *Orchestrator) Status() types.SessionStatus {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()
	return o.status
}

// FinalSummaryStatus reports whether the background summary task is still
// running, has completed, or produced an error summary.
func (o *Orchestrator) FinalSummaryStatus() SummaryStatus {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()
	switch {
	case o.summaryGenerating:
		return SummaryGenerating
	case o.finalSummary != nil && o.finalSummary.Error != "":
		return SummaryError
	case o.finalSummary != nil:
		return SummaryCompleted
	default:
		return SummaryGenerating
	}
}

// FinalSummary returns the completed summary, or nil if it is not yet ready.
func (o *Orchestrator) FinalSummary() *types.Summary {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()
	if o.finalSummary == nil {
		return nil
	}
	s := *o.finalSummary
	return &s
}

// NeedsSave reports whether state has changed since the last persisted
// snapshot. The Registry clears this after a successful save.
func (o *Orchestrator) NeedsSave() bool {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()
	return o.needsSave
}

// ClearNeedsSave resets the dirty flag after a successful Store Gateway save.
func (o *Orchestrator) ClearNeedsSave() {
	o.fieldsMu.Lock()
	defer o.fieldsMu.Unlock()
	o.needsSave = false
}
