package interview

import (
	"strings"
	"text/template"
)

var nextQuestionTmpl = template.Must(template.New("next_question").Parse(`You are an AI HR interviewer conducting a behavioral interview. Generate exactly ONE next question that continues the conversation naturally.

**CONTEXTUAL DATA:**
- Company: {{.CompanyInfo}}
- Job Role: {{.JobDescription}}
- Candidate CV: {{.CVContent}}

**CONVERSATION STATE:**
- Previous questions asked: {{.PreviousQuestions}}
- Conversation duration: {{.DurationMinutes}} minutes
- Current time: {{.ElapsedSeconds}} secs
- Remaining time budget: {{.RemainingMinutes}} minutes

**GENERATION STRATEGY:**
If there are already asked questions, FOLLOW-UP MODE:
- Build directly on the candidate's last response or previous discussion
- Probe deeper into specific experiences or competencies mentioned
- Maintain natural conversational flow
- Avoid repeating previously covered topics unless for deeper exploration
If no questions yet, FIRST QUESTION MODE:
- Create an engaging opening question that builds rapport
- Reference specific elements from the candidate's application letter to show you've read it
- Connect their background and motivations to the role and company
- Set a positive, conversational tone for the interview
- Focus on understanding their motivation and initial fit

**APPLICATION LETTER INTEGRATION:**
Pay special attention to key motivations, specific connections to our company or role, and career goals stated in the application letter.
Application letter content:
{{.ApplicationLetter}}

**QUESTION GENERATION RULES:**
1. Generate exactly ONE question
2. Make it conversational and open-ended
3. Connect to their background, application letter, or previous discussion
4. Focus on behavioral competencies (teamwork, leadership, problem-solving, adaptability)
5. Ensure it feels like a natural next question in this interview

**OUTPUT FORMAT (strict JSON):**
{
    "next_question": {
        "question": "the actual question text",
        "session_ended": "yes or no, yes only when no more information is needed from the candidate or time is exhausted",
        "focus_area": "specific competency being evaluated",
        "question_type": "opening|follow_up|probing|situational|closing",
        "rationale": "why this question is relevant now and how it connects to candidate background",
        "expected_answer_elements": ["key element 1", "key element 2", "key element 3"],
        "potential_follow_up_paths": ["path 1", "path 2"]
    }
}

**Remember:** You are generating ONE question that continues this specific interview. Never imagine user responses they have not given. Respect the time budget, and when the session is marked as ended give the user a non-respondable closing message.`))

var batchQuestionsTmpl = template.Must(template.New("batch_questions").Parse(`Generate {{.NumQuestions}} industry technical written mixed questions based on the candidate's CV and the job requirements and description.

From application data:
Job description: {{.JobDescription}}
Job requirements: {{.JobRequirements}}
Candidate CV: {{.CVContent}}

For each question, include question text, question type (multiple-choice, short-answer, essay), difficulty level (easy/medium/hard), target skill, expected answer, and brief answer guidelines.

Return JSON respecting the following format strictly:
{
    "application_id": "{{.ExamID}}",
    "questions": [
        {
            "question": "question text",
            "difficulty": "easy/medium/hard",
            "choices": ["option1", "option2", "option3", "option4"],
            "question_type": "multiple-choice/short-answer/essay",
            "target_skill": "specific technology or concept",
            "expected_answer": "what a good answer should include",
            "answer_guidelines": "what to look for in answers"
        }
    ]
}`))

var cvParseTmpl = template.Must(template.New("cv_parse").Parse(`Extract structured information from the following CV text.
Return ONLY valid professional Markdown formatted text.

CV Text:
{{.CVText}}

Return valid Markdown only:`))

var screeningTmpl = template.Must(template.New("screening").Parse(`Screen the following candidate based on their application letter, CV content, and job requirements.
Return ONLY valid JSON that includes application_id, decision (accepted/rejected), and reasons.

Applications Data:
Application ID: {{.ExamID}}
Job description: {{.JobDescription}}
Job requirements: {{.JobRequirements}}
Application letter: {{.ApplicationLetter}}
Candidate CV: {{.CVContent}}

Return valid JSON only:`))

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type nextQuestionPromptData struct {
	CompanyInfo       string
	JobDescription    string
	CVContent         string
	ApplicationLetter string
	PreviousQuestions string
	DurationMinutes   int
	ElapsedSeconds    int
	RemainingMinutes  int
}

type batchPromptData struct {
	ExamID          string
	NumQuestions    int
	JobDescription  string
	JobRequirements string
	CVContent       string
}
