package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/interviewsim/internal/coach"
	"github.com/corvidlabs/interviewsim/internal/eventbus"
	"github.com/corvidlabs/interviewsim/internal/interviewer"
	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/internal/session"
	"github.com/corvidlabs/interviewsim/internal/speech"
	"github.com/corvidlabs/interviewsim/internal/store"
	"github.com/corvidlabs/interviewsim/pkg/provider/stt"
	sttmock "github.com/corvidlabs/interviewsim/pkg/provider/stt/mock"
	ttsmock "github.com/corvidlabs/interviewsim/pkg/provider/tts/mock"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

// newTestDeps wires real core collaborators behind the production router:
// memory store, registry, fallback-only agents (no LLM provider), and a
// governed speech tracker with mock providers.
func newTestDeps(t *testing.T, gov *ratelimit.Governor) (*Deps, store.Gateway) {
	t.Helper()
	gw := store.NewMemoryGateway()
	bus := eventbus.New()

	factory := func(id, owner string, cfg types.SessionConfig) *session.Orchestrator {
		return session.NewOrchestrator(id, owner, cfg, bus, nil,
			func() session.InterviewerAgent { return interviewer.New(nil, cfg, nil) },
			func() session.CoachAgent { return coach.NewEvaluator(nil, nil, cfg.ResumeText, cfg.JobDescription, nil) },
		)
	}
	reg := session.New(gw, bus, nil, factory)
	t.Cleanup(func() { reg.StopCleanupTask() })

	if gov == nil {
		gov = ratelimit.New(ratelimit.DefaultCapacities())
	}
	tracker := speech.New(gw, gov,
		&sttmock.Provider{Result: &stt.Result{Text: "transcribed text", Confidence: 0.9, Duration: time.Second}},
		&ttsmock.Provider{Audio: []byte("mp3-bytes")},
		nil, 1)

	return &Deps{
		Registry:         reg,
		Speech:           tracker,
		Governor:         gov,
		Store:            gw,
		MaxIdleMinutes:   15,
		DefaultQuestions: 15,
	}, gw
}

func doJSON(t *testing.T, handler http.Handler, method, path, sessionID string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if sessionID != "" {
		req.Header.Set(sessionIDHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func TestInterviewFlow_CreateStartMessageHistory(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	router := NewRouter(deps)

	rec, body := doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/interview/session", "", map[string]any{
		"job_role":              "Software Engineer",
		"style":                 "formal",
		"target_question_count": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)

	rec, body = doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/interview/start", sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(types.ResponseIntroduction), body["response_type"])

	rec, body = doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/interview/message", sessionID, map[string]any{
		"message": "I have 5 years of experience.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(types.ResponseQuestion), body["response_type"])

	rec, body = doJSON(t, router, http.MethodGet, "https://fd-gally.netlify.app/hf/interview/history", sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history, ok := body["history"].([]any)
	require.True(t, ok)
	// intro + user turn + question, at minimum
	require.GreaterOrEqual(t, len(history), 3)

	rec, _ = doJSON(t, router, http.MethodGet, "https://fd-gally.netlify.app/hf/interview/stats", sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEndInterview_NeverCarriesSummaryAndPollsToCompletion(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	router := NewRouter(deps)

	_, body := doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/interview/session", "", nil)
	sessionID := body["session_id"].(string)

	doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/interview/start", sessionID, nil)
	doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/interview/message", sessionID, map[string]any{"message": "An answer."})

	rec, body := doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/interview/end", sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{}, body["results"], "end response must never carry the summary")
	require.Equal(t, true, body["has_immediate_data"])
	require.Contains(t, []any{"generating", "completed"}, body["final_summary_status"])

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, body = doJSON(t, router, http.MethodGet, "https://fd-gally.netlify.app/hf/interview/final-summary-status?poll_count=1", sessionID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		if body["status"] == "completed" {
			break
		}
		require.True(t, time.Now().Before(deadline), "summary did not complete in time")
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, float64(0), body["suggested_poll_interval_ms"])
	require.NotNil(t, body["results"])
}

func TestSuggestedPollInterval_ExponentialSchedule(t *testing.T) {
	want := map[int]int{1: 1000, 2: 2000, 3: 4000, 4: 8000, 5: 10000, 9: 10000}
	for pollCount, ms := range want {
		require.Equal(t, ms, suggestedPollIntervalMS(pollCount), "poll_count=%d", pollCount)
	}
	require.Equal(t, 1000, suggestedPollIntervalMS(0), "poll_count below 1 clamps to the first step")
}

func TestSessionEndpoints_RequireSessionID(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	router := NewRouter(deps)

	rec, body := doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/interview/start", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_input", body["error"])
}

func TestSessionEndpoints_UnknownSessionIs404(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	router := NewRouter(deps)

	rec, body := doJSON(t, router, http.MethodGet, "https://fd-gally.netlify.app/hf/interview/history", "no-such-session", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "session_not_found", body["error"])
}

func TestBatchSTT_SubmitAndPollToCompletion(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "https://fd-gally.netlify.app/hf/api/speech-to-text", strings.NewReader("raw audio bytes"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.Equal(t, "processing", submitted.Status)
	require.NotEmpty(t, submitted.TaskID)

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, body := doJSON(t, router, http.MethodGet, fmt.Sprintf("https://fd-gally.netlify.app/hf/api/speech-to-text/status/%s", submitted.TaskID), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		if body["status"] == "completed" {
			result := body["result"].(map[string]any)
			require.Equal(t, "transcribed text", result["text"])
			return
		}
		require.True(t, time.Now().Before(deadline), "task did not complete in time")
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTTS_BuffersAudio(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	router := NewRouter(deps)

	rec, _ := doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/api/text-to-speech", "", map[string]any{
		"text": "a totally unique utterance", "speed": 1.0,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	require.Equal(t, "mp3-bytes", rec.Body.String())
}

func TestTTS_BackpressureWithoutAcquiring(t *testing.T) {
	gov := ratelimit.NewWithTimeout(ratelimit.Capacities{TTS: 1, STTBatch: 1, STTStream: 1, Search: 1}, 10*time.Millisecond)
	deps, _ := newTestDeps(t, gov)
	router := NewRouter(deps)

	release, err := gov.Acquire(context.Background(), ratelimit.ProviderTTS)
	require.NoError(t, err)
	defer release()

	rec, body := doJSON(t, router, http.MethodPost, "https://fd-gally.netlify.app/hf/api/text-to-speech", "", map[string]any{"text": "hello"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "capacity_exhausted", body["error"])
}

func TestUsageStats_ReportsGovernorSnapshot(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	router := NewRouter(deps)

	rec, body := doJSON(t, router, http.MethodGet, "https://fd-gally.netlify.app/hf/api/speech/usage-stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, body, "rate_limits")
}

func TestOps_HealthAndMetrics(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	router := NewRouter(deps)

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		rec, _ := doJSON(t, router, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec, body := doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, body, "sessions")
	require.Contains(t, body, "rate_limits")
}
