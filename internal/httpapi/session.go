package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/corvidlabs/interviewsim/internal/observe"
	"github.com/corvidlabs/interviewsim/internal/session"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

func registerSessionRoutes(mux *http.ServeMux, d *Deps) {
	mux.HandleFunc("POST /interview/session", d.createSession)
	mux.HandleFunc("POST /interview/start", d.startInterview)
	mux.HandleFunc("POST /interview/message", d.postMessage)
	mux.HandleFunc("POST /interview/end", d.endInterview)
	mux.HandleFunc("GET /interview/final-summary-status", d.finalSummaryStatus)
	mux.HandleFunc("GET /interview/history", d.history)
	mux.HandleFunc("GET /interview/stats", d.stats)
	mux.HandleFunc("GET /interview/per-turn-feedback", d.perTurnFeedback)
	mux.HandleFunc("POST /interview/reset", d.resetSession)
	mux.HandleFunc("GET /interview/session/time-remaining", d.timeRemaining)
	mux.HandleFunc("POST /interview/session/ping", d.pingSession)
	mux.HandleFunc("POST /interview/session/cleanup", d.cleanupSession)
}

// createSessionRequest is the wire shape for POST /interview/session. Its
// JSON keys are the public client contract rather than
// types.SessionConfig's Go-internal field names, so the HTTP DTO layer
// stays the single place that translates wire shape to domain types.
type createSessionRequest struct {
	JobRole                string `json:"job_role"`
	JobDescription         string `json:"job_description"`
	ResumeText             string `json:"resume_text"`
	Style                  string `json:"style"`
	Difficulty             string `json:"difficulty"`
	TargetQuestionCount    int    `json:"target_question_count"`
	CompanyName            string `json:"company_name"`
	InterviewDurationMins  int    `json:"interview_duration_minutes"`
	UseTimeBasedInterview  bool   `json:"use_time_based_interview"`
}

func (req createSessionRequest) toConfig(defaultQuestions int) types.SessionConfig {
	cfg := types.SessionConfig{
		JobRole:               req.JobRole,
		JobDescription:        req.JobDescription,
		ResumeText:            req.ResumeText,
		Style:                 types.InterviewStyle(req.Style),
		Difficulty:            req.Difficulty,
		TargetQuestionCount:   req.TargetQuestionCount,
		CompanyName:           req.CompanyName,
		InterviewDurationMins: req.InterviewDurationMins,
		TimeBased:             req.UseTimeBasedInterview,
	}
	if cfg.TargetQuestionCount <= 0 && defaultQuestions > 0 {
		cfg.TargetQuestionCount = defaultQuestions
	}
	return cfg
}

func (d *Deps) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil {
		// A missing or empty body creates an anonymous, default-config
		// session rather than an error; the config block is optional.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body", observe.CorrelationID(r.Context()))
			return
		}
	}

	owner := d.ownerUserID(r)
	cfg := req.toConfig(d.DefaultQuestions)
	id, err := d.Registry.CreateSession(r.Context(), owner, cfg)
	if err != nil {
		status, code := sessionErrorStatus(err)
		writeError(w, status, code, err.Error(), observe.CorrelationID(r.Context()))
		return
	}
	if d.Metrics != nil {
		d.Metrics.SessionsCreated.Add(r.Context(), 1)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"message":    "session created",
	})
}

func (d *Deps) withSession(w http.ResponseWriter, r *http.Request, fn func(h *session.Handle)) {
	id, ok := requireSessionID(w, r)
	if !ok {
		return
	}
	h, err := d.Registry.GetSessionManager(r.Context(), id)
	if err != nil {
		status, code := sessionErrorStatus(err)
		writeError(w, status, code, err.Error(), observe.CorrelationID(r.Context()))
		return
	}
	defer h.Release()
	fn(h)
	d.saveInBackground(id)
}

// saveInBackground enqueues a non-blocking save: mutating operations
// persist without holding up the response, and a later save (next request
// or summary poll) covers any state mutated after this point.
func (d *Deps) saveInBackground(sessionID string) {
	go func() {
		if err := d.Registry.SaveSession(context.Background(), sessionID); err != nil {
			d.logger().Warn("httpapi: background save failed", "session_id", sessionID, "error", err)
		}
	}()
}

func messageDTO(m types.Message) map[string]any {
	return map[string]any{
		"content":       m.Content,
		"response_type": m.ResponseType,
		"agent":         m.Agent,
		"metadata":      m.Metadata,
	}
}

func (d *Deps) startInterview(w http.ResponseWriter, r *http.Request) {
	var reply types.Message
	var got bool
	d.withSession(w, r, func(h *session.Handle) {
		h.Orchestrator().ResetSession()
		reply = h.Orchestrator().ProcessMessage(r.Context(), "")
		got = true
	})
	if !got {
		return
	}
	writeJSON(w, http.StatusOK, messageDTO(reply))
}

type postMessageRequest struct {
	Message string `json:"message"`
}

func (d *Deps) postMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body", observe.CorrelationID(r.Context()))
		return
	}

	var reply types.Message
	var got bool
	d.withSession(w, r, func(h *session.Handle) {
		reply = h.Orchestrator().ProcessMessage(r.Context(), req.Message)
		got = true
	})
	if !got {
		return
	}
	writeJSON(w, http.StatusOK, messageDTO(reply))
}

func (d *Deps) endInterview(w http.ResponseWriter, r *http.Request) {
	var result session.EndInterviewResult
	var got bool
	d.withSession(w, r, func(h *session.Handle) {
		result = h.Orchestrator().EndInterview(context.WithoutCancel(r.Context()))
		got = true
		if d.Metrics != nil {
			d.Metrics.SessionsCompleted.Add(r.Context(), 1)
		}
	})
	if !got {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":              map[string]any{},
		"per_turn_feedback":    result.PerTurnFeedback,
		"final_summary_status": result.FinalSummaryStatus,
		"has_immediate_data":   result.HasImmediateData,
	})
}

// suggestedPollIntervalMS computes the exponential poll schedule:
// 1s, 2s, 4s, 8s, 10s, 10s, ...
func suggestedPollIntervalMS(pollCount int) int {
	if pollCount < 1 {
		pollCount = 1
	}
	shift := pollCount - 1
	if shift > 4 {
		shift = 4
	}
	ms := 1000 << uint(shift)
	if ms > 10000 {
		ms = 10000
	}
	return ms
}

func (d *Deps) finalSummaryStatus(w http.ResponseWriter, r *http.Request) {
	pollCount, _ := strconv.Atoi(r.URL.Query().Get("poll_count"))

	var status session.SummaryStatus
	var summary *types.Summary
	var got bool
	d.withSession(w, r, func(h *session.Handle) {
		status = h.Orchestrator().FinalSummaryStatus()
		summary = h.Orchestrator().FinalSummary()
		got = true
	})
	if !got {
		return
	}

	resp := map[string]any{"status": status}
	switch status {
	case session.SummaryCompleted:
		resp["suggested_poll_interval_ms"] = 0
		if summary != nil {
			resp["results"] = summary
		}
	case session.SummaryError:
		resp["suggested_poll_interval_ms"] = 0
		if summary != nil {
			resp["error"] = summary.Error
		}
	default:
		resp["suggested_poll_interval_ms"] = suggestedPollIntervalMS(pollCount)
		resp["generation_time_estimate"] = "30-60s"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Deps) history(w http.ResponseWriter, r *http.Request) {
	var hist []types.Message
	var got bool
	d.withSession(w, r, func(h *session.Handle) {
		hist = h.Orchestrator().History()
		got = true
	})
	if !got {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": hist})
}

func (d *Deps) stats(w http.ResponseWriter, r *http.Request) {
	var s types.SessionStats
	var got bool
	d.withSession(w, r, func(h *session.Handle) {
		s = h.Orchestrator().Stats()
		got = true
	})
	if !got {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": s})
}

func (d *Deps) perTurnFeedback(w http.ResponseWriter, r *http.Request) {
	var feedback []types.FeedbackEntry
	var got bool
	d.withSession(w, r, func(h *session.Handle) {
		feedback = h.Orchestrator().Snapshot("").FeedbackLog
		got = true
	})
	if !got {
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

func (d *Deps) resetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSessionID(w, r)
	if !ok {
		return
	}
	var got bool
	d.withSession(w, r, func(h *session.Handle) {
		h.Orchestrator().ResetSession()
		got = true
	})
	if !got {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "session reset", "session_id": id})
}

func (d *Deps) timeRemaining(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSessionID(w, r)
	if !ok {
		return
	}
	maxIdle := d.MaxIdleMinutes
	if maxIdle <= 0 {
		maxIdle = 15
	}
	remaining := d.Registry.GetTimeRemaining(id, maxIdle)
	if remaining == nil {
		writeJSON(w, http.StatusOK, map[string]any{"time_remaining_minutes": nil, "session_active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"time_remaining_minutes": *remaining, "session_active": true})
}

func (d *Deps) pingSession(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSessionID(w, r)
	if !ok {
		return
	}
	d.Registry.PingSession(id)
	maxIdle := d.MaxIdleMinutes
	if maxIdle <= 0 {
		maxIdle = 15
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "new_expiry_minutes": maxIdle})
}

func (d *Deps) cleanupSession(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSessionID(w, r)
	if !ok {
		return
	}
	d.Registry.CleanupSessionImmediately(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "session released"})
}
