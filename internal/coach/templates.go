package coach

// evaluateAnswerTemplate drives the per-turn conversational feedback call.
// Output is plain prose, not JSON.
const evaluateAnswerTemplate = `You are an expert Interview Coach providing conversational feedback on a candidate's answer to an interview question.
Focus on what they did well and what they could improve, as if you were talking to them directly.

Candidate's resume snapshot: {resume_content}
Target job description snapshot: {job_description}

Conversation history (focus feedback on the CURRENT question and answer):
{conversation_history}

Question asked: {question}
Candidate's answer: {answer}
Interviewer's justification for the next question/action: {justification}

Provide your feedback as a single, flowing block of text. Be encouraging but direct about areas for improvement. Do NOT use JSON or list formatting.`

// finalSummaryTemplate drives the end-of-interview structured summary call.
const finalSummaryTemplate = `You are an expert Interview Coach providing a final summary of a candidate's performance after an entire interview session.

Candidate's resume snapshot: {resume_content}
Target job description snapshot: {job_description}

Full conversation history:
{conversation_history}

Produce:
1. Noted patterns or tendencies across the whole interview, with specific examples.
2. Key strengths, with specific examples.
3. Key weaknesses / areas for development, explaining why, with specific examples.
4. 2-3 broad areas the candidate should focus on for future interview preparation.
5. 2-3 specific topics for web searches to find learning resources, based only on the identified weaknesses.

Respond ONLY with JSON in this shape:
{{
    "patterns_tendencies": "...",
    "strengths": "...",
    "weaknesses": "...",
    "improvement_focus_areas": "...",
    "resource_search_topics": ["topic one", "topic two"]
}}`
