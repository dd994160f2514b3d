package coach

import (
	"context"
	"log/slog"

	"github.com/corvidlabs/interviewsim/pkg/types"
)

// ResourceSearcher performs the underlying web search for learning
// resources. SerperSearchService is the production implementation;
// tests supply a stub.
type ResourceSearcher interface {
	SearchResources(ctx context.Context, skill, proficiencyLevel, jobRole string, numResults int) ([]types.Resource, error)
}

// maxOversampleFactor and maxOversampleCount bound how many extra results
// are requested to compensate for the free-content filter.
const (
	maxOversampleFactor = 4
	maxOversampleCount  = 40
)

// SearchTool is the Coach's learning-resource search collaborator: it
// requests more results than needed, filters out paid/book content, and
// returns at most numResults free resources.
type SearchTool struct {
	searcher ResourceSearcher
	logger   *slog.Logger
}

// NewSearchTool constructs a SearchTool over the given searcher.
func NewSearchTool(searcher ResourceSearcher, logger *slog.Logger) *SearchTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchTool{searcher: searcher, logger: logger}
}

// Search returns up to numResults free learning resources for skill at the
// given proficiency level. Errors are logged and swallowed: the caller
// always gets a (possibly empty) slice, never an error.
func (t *SearchTool) Search(ctx context.Context, skill, proficiencyLevel, jobRole string, numResults int) []types.Resource {
	if t.searcher == nil || numResults <= 0 {
		return nil
	}

	searchCount := numResults * maxOversampleFactor
	if searchCount > maxOversampleCount {
		searchCount = maxOversampleCount
	}

	results, err := t.searcher.SearchResources(ctx, skill, proficiencyLevel, jobRole, searchCount)
	if err != nil {
		t.logger.Warn("coach: resource search failed", "skill", skill, "error", err)
		return nil
	}

	free := filterFreeResources(results)
	if len(free) > numResults {
		free = free[:numResults]
	}
	return free
}

// filterFreeResources drops book/paid-indicator resources, preserving order.
func filterFreeResources(resources []types.Resource) []types.Resource {
	out := make([]types.Resource, 0, len(resources))
	for _, r := range resources {
		if isBookOrPaidResource(r.URL, r.Title) {
			continue
		}
		out = append(out, r)
	}
	return out
}
