// Package types holds the wire and persistence record shapes shared across
// the interview simulation backend: session configuration, conversation
// history, coaching artifacts, and speech-task records.
package types

import "time"

// InterviewStyle is the tone the Interviewer agent adopts.
type InterviewStyle string

const (
	StyleFormal     InterviewStyle = "formal"
	StyleCasual     InterviewStyle = "casual"
	StyleAggressive InterviewStyle = "aggressive"
	StyleTechnical  InterviewStyle = "technical"
)

// SessionStatus is the lifecycle status of a Session Record.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// MessageRole identifies who produced a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// AgentTag marks which agent produced an assistant Message.
type AgentTag string

const (
	AgentInterviewer AgentTag = "interviewer"
	AgentCoach       AgentTag = "coach"
)

// ResponseType classifies an assistant Message's purpose.
type ResponseType string

const (
	ResponseIntroduction ResponseType = "introduction"
	ResponseQuestion     ResponseType = "question"
	ResponseClosing      ResponseType = "closing"
	ResponseStatus       ResponseType = "status"
	ResponseError        ResponseType = "error"
)

// SessionConfig is immutable per session after creation.
type SessionConfig struct {
	JobRole                string         `json:"job_role"`
	JobDescription         string         `json:"job_description,omitempty"`
	ResumeText             string         `json:"resume_text,omitempty"`
	Style                  InterviewStyle `json:"style"`
	Difficulty             string         `json:"difficulty"`
	TargetQuestionCount    int            `json:"target_question_count"`
	CompanyName            string         `json:"company_name,omitempty"`
	InterviewDurationMins  int            `json:"interview_duration_minutes,omitempty"`
	TimeBased              bool           `json:"time_based"`
}

// Normalize fills in defaults left unset by the caller.
func (c *SessionConfig) Normalize() {
	if c.TargetQuestionCount <= 0 {
		c.TargetQuestionCount = 15
	}
	if c.Style == "" {
		c.Style = StyleFormal
	}
	if c.Difficulty == "" {
		c.Difficulty = "medium"
	}
}

// Message is a single turn in the conversation history.
type Message struct {
	Role         MessageRole    `json:"role"`
	Content      string         `json:"content"`
	Timestamp    time.Time      `json:"timestamp"`
	Agent        AgentTag       `json:"agent,omitempty"`
	ResponseType ResponseType   `json:"response_type,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// FeedbackEntry is one per-turn coaching record. Question and Answer are
// truncated to 200 characters before storage.
type FeedbackEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Feedback string `json:"feedback"`
}

const feedbackTruncateLen = 200

// TruncateForFeedback truncates s to the 200-character feedback-log limit.
func TruncateForFeedback(s string) string {
	r := []rune(s)
	if len(r) <= feedbackTruncateLen {
		return s
	}
	return string(r[:feedbackTruncateLen])
}

// ResourceType classifies a recommended learning Resource.
type ResourceType string

const (
	ResourceCourse        ResourceType = "course"
	ResourceTutorial      ResourceType = "tutorial"
	ResourceDocumentation ResourceType = "documentation"
	ResourceArticle       ResourceType = "article"
	ResourceVideo         ResourceType = "video"
	ResourceInteractive   ResourceType = "interactive"
	ResourceCommunity     ResourceType = "community"
	ResourceBook          ResourceType = "book"
)

// Resource is a single recommended learning material.
type Resource struct {
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	Description   string         `json:"description"`
	ResourceType  ResourceType   `json:"resource_type"`
	Reasoning     string         `json:"reasoning"`
	Relevance     *float64       `json:"relevance_score,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Summary is the post-interview coaching artifact.
type Summary struct {
	PatternsTendencies     string     `json:"patterns_tendencies"`
	Strengths              string     `json:"strengths"`
	Weaknesses             string     `json:"weaknesses"`
	ImprovementFocusAreas  string     `json:"improvement_focus_areas"`
	RecommendedResources   []Resource `json:"recommended_resources"`
	Error                  string     `json:"error,omitempty"`
}

// InterviewPhase is the Interviewer state machine's coarse phase.
type InterviewPhase string

const (
	PhaseInitializing InterviewPhase = "initializing"
	PhaseIntroducing  InterviewPhase = "introducing"
	PhaseQuestioning  InterviewPhase = "questioning"
	PhaseCompleted    InterviewPhase = "completed"
)

// ActionType is the Interviewer's next-step decision.
type ActionType string

const (
	ActionAskFollowUp    ActionType = "ask_follow_up"
	ActionAskNewQuestion ActionType = "ask_new_question"
	ActionEndInterview   ActionType = "end_interview"
)

// TimePressure buckets remaining-time pressure for prompt hints.
type TimePressure string

const (
	PressureLow    TimePressure = "low"
	PressureMedium TimePressure = "medium"
	PressureHigh   TimePressure = "high"
)

// TimeUIPhase is the Time Manager's coarse time bucket.
type TimeUIPhase string

const (
	TimeOpening     TimeUIPhase = "opening"
	TimeExploration TimeUIPhase = "exploration"
	TimeDeepening   TimeUIPhase = "deepening"
	TimeClosing     TimeUIPhase = "closing"
)

// TimeContext is the snapshot returned by the Time Manager.
type TimeContext struct {
	TotalMinutes      float64      `json:"total_minutes"`
	ElapsedMinutes    float64      `json:"elapsed_minutes"`
	RemainingMinutes  float64      `json:"remaining_minutes"`
	ProgressPercent   float64      `json:"progress_percent"`
	Phase             TimeUIPhase  `json:"phase"`
	PhaseProgress     float64      `json:"phase_progress"`
	Pressure          TimePressure `json:"pressure"`
	SuggestedActions  []string     `json:"suggested_actions"`
}

// SpeechTaskType distinguishes the three async speech workflows.
type SpeechTaskType string

const (
	TaskSTTBatch  SpeechTaskType = "stt_batch"
	TaskSTTStream SpeechTaskType = "stt_stream"
	TaskTTS       SpeechTaskType = "tts"
)

// SpeechTaskStatus is the lifecycle status of a Speech Task Record.
type SpeechTaskStatus string

const (
	SpeechProcessing SpeechTaskStatus = "processing"
	SpeechCompleted  SpeechTaskStatus = "completed"
	SpeechError      SpeechTaskStatus = "error"
)

// SpeechTaskRecord is the durable unit tracking an async speech workflow.
type SpeechTaskRecord struct {
	TaskID    string           `json:"task_id"`
	SessionID string           `json:"session_id"`
	TaskType  SpeechTaskType   `json:"task_type"`
	Status    SpeechTaskStatus `json:"status"`
	Progress  map[string]any   `json:"progress,omitempty"`
	Result    map[string]any   `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// SessionStats holds per-session turn counters.
type SessionStats struct {
	APICallCount              int        `json:"api_call_count"`
	MessageCount              int        `json:"message_count"`
	ResourceGenerationAt      *time.Time `json:"resource_generation_completed_at,omitempty"`
}

// SessionRecord is the durable unit persisted through the Store Gateway.
type SessionRecord struct {
	SessionID         string          `json:"session_id"`
	OwnerUserID       string          `json:"owner_user_id,omitempty"`
	Config            SessionConfig   `json:"config"`
	History           []Message       `json:"history"`
	FeedbackLog       []FeedbackEntry `json:"feedback_log"`
	FinalSummary      *Summary        `json:"final_summary,omitempty"`
	Stats             SessionStats    `json:"stats"`
	Status            SessionStatus   `json:"status"`
	SummaryGenerating bool            `json:"summary_generating"`
	NeedsSave         bool            `json:"needs_save"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// AgentContext is the snapshot handed to the Interviewer and Coach on each
// turn: an immutable view of session config and history at call time.
type AgentContext struct {
	SessionID string
	Config    SessionConfig
	History   []Message
}

// AgentResponse is produced by the Interviewer for a single process() call.
type AgentResponse struct {
	Content      string         `json:"content"`
	ResponseType ResponseType   `json:"response_type"`
	Agent        AgentTag       `json:"agent"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
