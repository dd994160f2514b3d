package llm

// Message is a single turn handed to the model. The interviewer and coach
// build their prompts as short role-tagged sequences.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text of the turn.
	Content string
}

// Usage holds token accounting reported by the backend for one request.
// All counts are zero when the backend does not report usage.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
