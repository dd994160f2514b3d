package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/corvidlabs/interviewsim/internal/ratelimit"
	"github.com/corvidlabs/interviewsim/pkg/types"
)

const serperSearchURL = "https://google.serper.dev/search"

// SerperSearchService is a ResourceSearcher backed by the serper.dev search
// API. Rate limiting is enforced through the shared governor's search
// provider slot before every request.
type SerperSearchService struct {
	apiKey    string
	client    *http.Client
	governor  *ratelimit.Governor
	logger    *slog.Logger
}

// NewSerperSearchService constructs a search service. governor may be nil
// in tests, in which case requests are not rate limited.
func NewSerperSearchService(apiKey string, governor *ratelimit.Governor, logger *slog.Logger) *SerperSearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SerperSearchService{
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
		governor: governor,
		logger:   logger,
	}
}

type serperRequest struct {
	Q    string `json:"q"`
	Num  int    `json:"num"`
	GL   string `json:"gl"`
	HL   string `json:"hl"`
}

type serperOrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type serperResponse struct {
	Organic []serperOrganicResult `json:"organic"`
}

// SearchResources queries serper.dev for skill-related learning material and
// classifies each organic result into a Resource.
func (s *SerperSearchService) SearchResources(ctx context.Context, skill, proficiencyLevel, jobRole string, numResults int) ([]types.Resource, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("coach: serper search requires an API key")
	}

	if s.governor != nil {
		release, err := s.governor.Acquire(ctx, ratelimit.ProviderSearch)
		if err != nil {
			return nil, fmt.Errorf("coach: acquiring search capacity: %w", err)
		}
		defer release()
	}

	query := buildSearchQuery(skill, proficiencyLevel, jobRole)

	body, err := json.Marshal(serperRequest{Q: query, Num: numResults, GL: "us", HL: "en"})
	if err != nil {
		return nil, fmt.Errorf("coach: encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serperSearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("coach: building search request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coach: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coach: search provider returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coach: reading search response: %w", err)
	}

	var parsed serperResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("coach: decoding search response: %w", err)
	}

	s.logger.Info("coach: search provider returned results", "query", query, "count", len(parsed.Organic))

	resources := make([]types.Resource, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		if r.Link == "" {
			continue
		}
		score := relevanceScore(r.Link)
		resources = append(resources, types.Resource{
			Title:        r.Title,
			URL:          r.Link,
			Description:  r.Snippet,
			ResourceType: classifyResourceType(r.Link, r.Title),
			Relevance:    &score,
			Metadata:     map[string]any{"domain_quality": domainQuality(r.Link)},
		})
	}
	return resources, nil
}

func buildSearchQuery(skill, proficiencyLevel, jobRole string) string {
	query := fmt.Sprintf("learn %s tutorial", skill)
	if proficiencyLevel != "" {
		query = fmt.Sprintf("%s %s", proficiencyLevel, query)
	}
	if jobRole != "" {
		query = fmt.Sprintf("%s for %s", query, jobRole)
	}
	return query
}

func relevanceScore(url string) float64 {
	switch domainQuality(url) {
	case "top":
		return 0.9
	case "medium":
		return 0.6
	default:
		return 0.4
	}
}
