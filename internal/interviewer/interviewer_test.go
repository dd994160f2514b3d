package interviewer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/interviewsim/internal/timemgr"
	"github.com/corvidlabs/interviewsim/pkg/provider/llm"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

// queueProvider returns one reply per call, in order, and repeats the last
// one once exhausted.
type queueProvider struct {
	responses []string
	calls     int
}

func (p *queueProvider) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	i := p.calls
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.calls++
	return &llm.Response{Text: p.responses[i]}, nil
}

func baseConfig() types.SessionConfig {
	cfg := types.SessionConfig{
		JobRole:             "Software Engineer",
		Style:               types.StyleFormal,
		TargetQuestionCount: 5,
	}
	cfg.Normalize()
	return cfg
}

func TestInterviewer_FirstProcessProducesIntroductionThenQuestion(t *testing.T) {
	iv := New(nil, baseConfig(), nil)
	require.Equal(t, types.PhaseInitializing, iv.Phase())

	resp := iv.Process(context.Background(), types.AgentContext{Config: baseConfig()})
	require.Equal(t, types.ResponseIntroduction, resp.ResponseType)
	require.Equal(t, types.PhaseQuestioning, iv.Phase())
	require.NotEmpty(t, iv.CurrentQuestion())
}

func TestInterviewer_QuestionBank_NoResumeUsesTemplates(t *testing.T) {
	cfg := baseConfig()
	iv := New(nil, cfg, nil)
	bank := buildQuestionBank(context.Background(), nil, cfg)
	require.Equal(t, DefaultOpeningQuestion, bank[0])
	require.LessOrEqual(t, len(bank), cfg.TargetQuestionCount)
	_ = iv
}

func TestInterviewer_QuestionBank_WithResumeUsesLLM(t *testing.T) {
	cfg := baseConfig()
	cfg.JobDescription = "Backend role requiring Go and Postgres."
	cfg.ResumeText = "5 years building distributed systems in Go."

	p := &queueProvider{responses: []string{`["Tell me about your Go experience.", "Describe a Postgres scaling challenge you solved."]`}}
	bank := buildQuestionBank(context.Background(), p, cfg)

	require.Equal(t, DefaultOpeningQuestion, bank[0])
	require.Contains(t, bank, "Tell me about your Go experience.")
	require.Equal(t, 1, p.calls)
}

func TestInterviewer_NextAction_InvalidActionTypeDefaults(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetQuestionCount = 3
	p := &queueProvider{responses: []string{`{"action_type": "nonsense"}`}}
	iv := New(p, cfg, nil)

	iv.Process(context.Background(), types.AgentContext{Config: cfg}) // initializing -> introducing -> first question
	resp := iv.Process(context.Background(), types.AgentContext{
		Config:  cfg,
		History: []types.Message{{Role: types.RoleUser, Content: "my answer"}},
	})

	require.Equal(t, types.ResponseQuestion, resp.ResponseType)
	require.Equal(t, DefaultFallbackQuestion, resp.Content)
}

func TestInterviewer_NextAction_CountBasedRejectsEarlyEnd(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetQuestionCount = 10
	p := &queueProvider{responses: []string{`{"action_type": "end_interview", "justification": "done"}`}}
	iv := New(p, cfg, nil)

	iv.Process(context.Background(), types.AgentContext{Config: cfg})
	resp := iv.Process(context.Background(), types.AgentContext{
		Config:  cfg,
		History: []types.Message{{Role: types.RoleUser, Content: "answer one"}},
	})

	require.Equal(t, types.ResponseQuestion, resp.ResponseType, "end_interview before MinQuestionCount must be rejected")
	require.Equal(t, types.PhaseQuestioning, iv.Phase())
}

func TestInterviewer_NextAction_HonorsEndAfterMinimum(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetQuestionCount = 10
	p := &queueProvider{responses: []string{
		`{"action_type": "ask_new_question", "next_question_text": "q2", "newly_covered_topics": ["go"]}`,
		`{"action_type": "ask_new_question", "next_question_text": "q3", "newly_covered_topics": ["sql"]}`,
		`{"action_type": "end_interview", "justification": "covered enough"}`,
	}}
	iv := New(p, cfg, nil)

	iv.Process(context.Background(), types.AgentContext{Config: cfg}) // intro + q1 (askedCount=1)
	iv.Process(context.Background(), types.AgentContext{Config: cfg}) // askedCount=2
	iv.Process(context.Background(), types.AgentContext{Config: cfg}) // askedCount=3
	resp := iv.Process(context.Background(), types.AgentContext{Config: cfg})

	require.Equal(t, types.ResponseClosing, resp.ResponseType)
	require.Equal(t, types.PhaseCompleted, iv.Phase())
}

func TestInterviewer_NextAction_TimeBasedForcesEndWhenRemainingZero(t *testing.T) {
	cfg := baseConfig()
	cfg.TimeBased = true
	p := &queueProvider{responses: []string{`{"action_type": "ask_new_question", "next_question_text": "ignored"}`}}
	iv := New(p, cfg, nil)
	// Replace the real-duration timer with a near-instant one so the test
	// can observe the "remaining <= 0" guard without sleeping minutes.
	iv.timeMgr = timemgr.New(10 * time.Millisecond)

	iv.Process(context.Background(), types.AgentContext{Config: cfg})
	time.Sleep(30 * time.Millisecond)
	resp := iv.Process(context.Background(), types.AgentContext{Config: cfg})

	require.Equal(t, types.ResponseClosing, resp.ResponseType)
}

func TestInterviewer_Reset_ReturnsToInitializing(t *testing.T) {
	cfg := baseConfig()
	iv := New(nil, cfg, nil)
	iv.Process(context.Background(), types.AgentContext{Config: cfg})
	require.Equal(t, types.PhaseQuestioning, iv.Phase())

	iv.Reset()
	require.Equal(t, types.PhaseInitializing, iv.Phase())
	require.Empty(t, iv.CurrentQuestion())
}

func TestRender_SkipsOnMissingPlaceholder(t *testing.T) {
	_, ok := render("Hello {name}, welcome to {place}.", map[string]string{"name": "Ada"})
	require.False(t, ok)
}

func TestRender_SubstitutesAllPlaceholders(t *testing.T) {
	out, ok := render("Hello {name}, welcome to {place}.", map[string]string{"name": "Ada", "place": "the team"})
	require.True(t, ok)
	require.Equal(t, "Hello Ada, welcome to the team.", out)
}

func TestDurationFromMinutes_DefaultsWhenNonPositive(t *testing.T) {
	require.Equal(t, 30*time.Minute, durationFromMinutes(0))
	require.Equal(t, 45*time.Minute, durationFromMinutes(45))
}
