package coach

import (
	"strings"

	"github.com/corvidlabs/interviewsim/pkg/types"
)

// classifyResourceType infers a ResourceType from URL and title keyword
// matches, falling back to "article" when nothing matches.
func classifyResourceType(url, title string) types.ResourceType {
	u := strings.ToLower(url)
	t := strings.ToLower(title)

	switch {
	case containsAny(u, videoDomains) || containsAny(t, videoIndicators):
		return types.ResourceVideo
	case containsAny(u, courseDomains) || containsAny(t, courseIndicators):
		return types.ResourceCourse
	case containsAny(u, documentationDomains) || containsAny(t, documentationIndicators):
		return types.ResourceDocumentation
	case containsAny(u, communityDomains) || containsAny(t, communityIndicators):
		return types.ResourceCommunity
	case containsAny(u, bookDomains):
		return types.ResourceBook
	default:
		return types.ResourceArticle
	}
}

// domainQuality buckets a URL's host into "top", "medium", or "default"
// for relevance weighting and display metadata.
func domainQuality(url string) string {
	u := strings.ToLower(url)
	for domain := range topQualityDomains {
		if strings.Contains(u, domain) {
			return "top"
		}
	}
	for domain := range mediumQualityDomains {
		if strings.Contains(u, domain) {
			return "medium"
		}
	}
	return "default"
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// isBookOrPaidResource reports whether a resource should be filtered out as
// non-free content: a known book/e-commerce domain, or a title carrying a
// paid-content indicator.
func isBookOrPaidResource(url, title string) bool {
	u := strings.ToLower(url)
	t := strings.ToLower(title)
	return containsAny(u, bookDomains) || containsAny(t, paidTitleIndicators)
}
