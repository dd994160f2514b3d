package coach

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/interviewsim/pkg/provider/llm"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

var errFakeLLM = errors.New("llm call failed")

// queueProvider returns one reply per call, in order, and repeats the last
// one once exhausted. An index in failures simulates a failed call.
type queueProvider struct {
	responses []string
	failures  map[int]bool
	calls     int
}

func (p *queueProvider) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	i := p.calls
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.calls++
	if p.failures != nil && p.failures[i] {
		return nil, errFakeLLM
	}
	return &llm.Response{Text: p.responses[i]}, nil
}

// fakeSearcher returns a fixed resource list regardless of query, optionally
// interleaving book/paid results to exercise the filter.
type fakeSearcher struct {
	resources []types.Resource
	err       error
}

func (f *fakeSearcher) SearchResources(_ context.Context, _, _, _ string, numResults int) ([]types.Resource, error) {
	if f.err != nil {
		return nil, f.err
	}
	if numResults < len(f.resources) {
		return f.resources[:numResults], nil
	}
	return f.resources, nil
}

func sampleHistory() []types.Message {
	return []types.Message{
		{Role: types.RoleAssistant, Content: "Tell me about a time you debugged a hard issue."},
		{Role: types.RoleUser, Content: "I once tracked down a race condition by adding targeted logging."},
	}
}

func TestEvaluate_ReturnsLLMContentOnSuccess(t *testing.T) {
	provider := &queueProvider{responses: []string{"Solid answer, but be more specific about the tools you used."}}
	e := NewEvaluator(provider, nil, "resume text", "job description", nil)

	feedback := e.Evaluate(context.Background(), "Describe a debugging story.", "I used logs.", "testing depth", sampleHistory())
	require.Equal(t, "Solid answer, but be more specific about the tools you used.", feedback)
}

func TestEvaluate_FallsBackOnLLMError(t *testing.T) {
	provider := &queueProvider{responses: []string{""}, failures: map[int]bool{0: true}}
	e := NewEvaluator(provider, nil, "", "", nil)

	feedback := e.Evaluate(context.Background(), "Q", "A", "J", sampleHistory())
	require.Equal(t, FeedbackUnavailable, feedback)
}

func TestFinalSummary_EmptyHistoryReturnsDefault(t *testing.T) {
	e := NewEvaluator(&queueProvider{}, nil, "", "", nil)
	summary := e.FinalSummary(context.Background(), nil)

	require.Equal(t, DefaultWeaknesses, summary.Weaknesses)
	require.ElementsMatch(t, fallbackResources, summary.RecommendedResources)
}

func TestFinalSummary_ParsesJSONAndAttachesResources(t *testing.T) {
	response := `{
		"patterns_tendencies": "Consistently structured answers using STAR.",
		"strengths": "Strong communication.",
		"weaknesses": "Limited depth on concurrency fundamentals.",
		"improvement_focus_areas": "Study goroutines and channels.",
		"resource_search_topics": ["concurrency"]
	}`
	provider := &queueProvider{responses: []string{response}}
	searcher := &fakeSearcher{resources: []types.Resource{
		{Title: "Go Concurrency Patterns", URL: "https://go.dev/blog/pipelines", ResourceType: types.ResourceArticle},
	}}
	tool := NewSearchTool(searcher, nil)
	e := NewEvaluator(provider, tool, "resume", "job desc", nil)

	summary := e.FinalSummary(context.Background(), sampleHistory())

	require.Equal(t, "Limited depth on concurrency fundamentals.", summary.Weaknesses)
	require.Len(t, summary.RecommendedResources, 1)
	require.Contains(t, summary.RecommendedResources[0].Reasoning, "concurrency")
}

func TestFinalSummary_FallsBackWhenSearchEmpty(t *testing.T) {
	response := `{"patterns_tendencies":"p","strengths":"s","weaknesses":"w","improvement_focus_areas":"i","resource_search_topics":["testing"]}`
	provider := &queueProvider{responses: []string{response}}
	searcher := &fakeSearcher{resources: nil}
	tool := NewSearchTool(searcher, nil)
	e := NewEvaluator(provider, tool, "", "", nil)

	summary := e.FinalSummary(context.Background(), sampleHistory())
	require.ElementsMatch(t, fallbackResources, summary.RecommendedResources)
}

func TestDetermineProficiencyLevel(t *testing.T) {
	require.Equal(t, "intermediate", determineProficiencyLevel("", "concurrency"))
	require.Equal(t, "beginner", determineProficiencyLevel("Lacks basic fundamentals", "concurrency"))
	require.Equal(t, "advanced", determineProficiencyLevel("Needs more advanced depth", "concurrency"))
	require.Equal(t, "beginner", determineProficiencyLevel("Struggled with concurrency primitives", "concurrency"))
}
