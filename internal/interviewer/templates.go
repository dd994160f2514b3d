package interviewer

import (
	"regexp"
	"strings"

	"github.com/corvidlabs/interviewsim/pkg/types"
)

// SystemPrompt describes the interviewer's persona. No code path in this
// module renders it or sends it to the LLM; the next-action and
// job-specific prompts below are sent as single user messages.
const SystemPrompt = `You are an expert AI interviewer for a {job_role} position conducting an interview in a {interview_style} style.

Question strategy:
- When the job description is detailed, ask questions that directly assess the specific skills, technologies, and experiences it names.
- When the job description is minimal, focus on core competencies typically required for {job_role} roles.
- When a resume is available, connect the candidate's past projects to job requirements.
- Your ONLY output should be questions for the candidate or a concluding statement when the interview ends.
- Do NOT provide feedback, evaluation, scores, or summaries to the candidate during the interview.
- Aim to ask approximately {target_question_count} questions.

Resume: {resume_content}
Job description: {job_description}`

// nextActionTemplate drives the count-based next-action decision.
const nextActionTemplate = `You are an expert AI interviewer conducting an interview for a {job_role} position, maintaining a {interview_style} style.

Job description: {job_description}
Job role: {job_role}
Candidate resume: {resume_content}

Target question count: {target_question_count}
Questions asked so far: {questions_asked_count}
Topics/skills covered: {areas_covered_so_far}
Previous question: {previous_question}
Candidate's last answer: {candidate_answer}

Conversation history:
{conversation_history}

Decide the next action:
- ask_follow_up: the last answer was incomplete, unclear, or warrants deeper exploration on the same topic.
- ask_new_question: the last topic is sufficiently covered, or it's time to move to a new area.
- end_interview: the target question count is reached, or all key areas seem reasonably covered.

Respond ONLY with JSON:
{{
    "action_type": "ask_follow_up" | "ask_new_question" | "end_interview",
    "next_question_text": "the next question, or null if ending",
    "justification": "brief reasoning",
    "newly_covered_topics": ["topics", "from", "the", "last", "answer"]
}}`

// timeAwareNextActionTemplate extends nextActionTemplate with time-budget context.
const timeAwareNextActionTemplate = `You are an intelligent interview agent conducting a {interview_style} interview for the role of {job_role}.

Job description: {job_description}
Candidate resume: {resume_content}
Difficulty level: {difficulty_level}

Time management context:
- Current time phase: {current_time_phase}
- Time progress: {time_progress_percentage}% complete
- Remaining time: {remaining_minutes} minutes
- Time pressure: {time_pressure}
- Time-based suggestions: {time_based_suggestions}

Conversation history:
{conversation_history}

Previous question: {previous_question}
Candidate's last answer: {candidate_answer}
Areas covered so far: {areas_covered_so_far}

Respond ONLY with JSON:
{{
    "action_type": "ask_new_question" | "ask_follow_up" | "end_interview",
    "next_question_text": "your question here, or null if ending",
    "justification": "your reasoning, considering time and content factors",
    "newly_covered_topics": ["list", "of", "new", "topics"]
}}`

// jobSpecificTemplate asks the LLM for a batch of role-targeted questions.
const jobSpecificTemplate = `You are creating targeted interview questions for a {job_role} position.
Job description: {job_description}
Resume content: {resume_content}

Generate {num_questions} specific interview questions that assess the key skills and experiences required for this role, based primarily on the job description and resume.

The questions should:
- Be directly relevant to the job responsibilities and required qualifications.
- Target specific technical skills, experiences, or projects mentioned.
- Range from moderate to challenging difficulty, suitable for the {difficulty_level} level.
- Require detailed, substantive answers, not yes/no.
- Align with the {interview_style} interview style.

Respond ONLY with a JSON list of strings.`

// introductionTemplates holds one opening statement per interview style.
var introductionTemplates = map[types.InterviewStyle]string{
	types.StyleFormal:     "Thank you for joining me for this interview for the {job_role} position at {company_name}. We'll be discussing your experience and qualifications through about {interview_duration}. I appreciate your time today.",
	types.StyleCasual:     "Hi there! Thanks for chatting with me about the {job_role} role at {company_name} today. I'd love to learn more about you through {interview_duration} of conversation. Let's keep this relaxed and informative!",
	types.StyleTechnical:  "Welcome to this technical interview for the {job_role} position at {company_name}. During our {interview_duration}, I'll be assessing your technical skills and problem-solving abilities through specific scenarios and challenges.",
	types.StyleAggressive: "Let's begin this interview for the {job_role} position. I have {interview_duration} of challenging questions prepared to thoroughly test your qualifications. I expect precise, substantive answers that demonstrate your expertise.",
}

// questionTemplates holds, per style, five placeholder-bearing question
// skeletons filled in from templateVariables.
var questionTemplates = map[types.InterviewStyle][]string{
	types.StyleFormal: {
		"Can you describe your experience with {technology}?",
		"How would you approach a situation where {scenario}?",
		"What methodology would you use to solve {problem_type} problems?",
		"Describe a time when you had to {challenge}. How did you handle it?",
		"How do you ensure {quality_aspect} in your work?",
	},
	types.StyleCasual: {
		"Tell me about a time you worked with {technology}. How did it go?",
		"What would you do if {scenario}?",
		"How do you typically tackle {problem_type} problems?",
		"Have you ever had to {challenge}? What happened?",
		"How do you make sure your work is {quality_aspect}?",
	},
	types.StyleAggressive: {
		"Prove to me you have experience with {technology}.",
		"What exactly would you do if {scenario}? Be specific.",
		"I need to know exactly how you would solve {problem_type} problems. Details.",
		"Give me a specific example of when you {challenge}. What exactly did you do?",
		"How specifically do you ensure {quality_aspect}? Don't give me generalities.",
	},
	types.StyleTechnical: {
		"Explain the key concepts of {technology} and how you've implemented them.",
		"What is your approach to {scenario} from a technical perspective?",
		"Walk me through your process for solving {problem_type} problems, including any algorithms or data structures you would use.",
		"Describe a technical challenge where you had to {challenge}. What was your solution?",
		"What metrics and tools do you use to ensure {quality_aspect} in your technical work?",
	},
}

// templateVariables supplies placeholder fill-ins per job role. defaultRole
// ("Software Engineer") is the fallback when a role has no dedicated entry.
const defaultRole = "Software Engineer"

var templateVariables = map[string]map[string][]string{
	"Software Engineer": {
		"technology":     {"React", "Python", "cloud infrastructure", "REST APIs", "microservices"},
		"scenario":       {"production system failure", "changing requirements", "performance optimization"},
		"problem_type":   {"algorithmic", "debugging", "system design"},
		"challenge":      {"lead a project", "mentor juniors", "meet tight deadlines"},
		"quality_aspect": {"code quality", "test coverage", "reliability"},
	},
	"Data Scientist": {
		"technology":     {"Python for data analysis", "machine learning frameworks", "data visualization"},
		"scenario":       {"incomplete data", "explaining results", "poor model performance"},
		"problem_type":   {"prediction", "classification", "clustering"},
		"challenge":      {"clean messy data", "deploy a model", "interpret complex results"},
		"quality_aspect": {"model accuracy", "reproducibility", "interpretability"},
	},
}

// generalQuestions are role-agnostic backfill questions keyed only by the
// {job_role} placeholder.
var generalQuestions = []string{
	"What attracted you to this position?",
	"Where do you see yourself professionally in five years?",
	"Why do you think you're a good fit for this {job_role}?",
	"Describe your ideal work environment.",
	"How do you stay updated with the latest developments in your field?",
}

// placeholderPattern matches any remaining {name} token after substitution.
var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// render substitutes every {key} in tmpl with vars[key]. If any placeholder
// remains unfilled, ok is false so the caller can skip the template
// silently rather than emit text with holes in it.
func render(tmpl string, vars map[string]string) (text string, ok bool) {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	if placeholderPattern.MatchString(out) {
		return "", false
	}
	return out, true
}
