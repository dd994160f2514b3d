package coach

// Placeholder feedback used when a step fails without a more specific
// message to surface.
const (
	FeedbackUnavailable = "Could not generate coaching feedback for this answer."

	DefaultPatternsTendencies    = "Could not generate patterns/tendencies feedback."
	DefaultStrengths             = "Could not generate strengths feedback."
	DefaultWeaknesses            = "Could not generate weaknesses feedback."
	DefaultImprovementFocusAreas = "Could not generate improvement focus areas."
)

// maxSearchTopics bounds how many resource_search_topics are acted on.
const maxSearchTopics = 3

// maxTotalResources caps the combined resource list across all topics.
const maxTotalResources = 6
