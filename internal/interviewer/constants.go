package interviewer

// Defaults used when session configuration leaves a field blank.
const (
	DefaultJobRole          = "the position"
	DefaultCompanyName      = "our company"
	DefaultValueNotProvided = "Not provided"

	DefaultOpeningQuestion  = "To start, could you please tell me a bit about yourself and your background?"
	DefaultFallbackQuestion = "Can you tell me about your professional background and experience?"

	InterviewConclusion = "Thank you for your time. This concludes the interview."
)

// MinQuestionCount is the minimum number of questions asked before
// end_interview is honored in count-based mode.
const MinQuestionCount = 3

// EstimatedMinutesPerQuestion is the estimated length of one question in
// a time-based session. No code in this module reads it; time-based
// sessions are paced by the Time Manager alone.
const EstimatedMinutesPerQuestion = 3

// timeBasedEndProgressThreshold is the minimum interview progress (0-1)
// required before an end_interview decision is honored in time-based mode.
const timeBasedEndProgressThreshold = 0.70
