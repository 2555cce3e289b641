package interview

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/utils"
)

type memExamRepo struct {
	mu    sync.Mutex
	exams map[string]models.ApplicationExam
	qrows []models.ExamQuestion

	statusWrites int
}

func newMemExamRepo() *memExamRepo {
	return &memExamRepo{exams: make(map[string]models.ApplicationExam)}
}

func (m *memExamRepo) Create(_ context.Context, e *models.ApplicationExam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[e.ID] = *e
	return nil
}

func (m *memExamRepo) GetByID(_ context.Context, id string) (*models.ApplicationExam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := e
	return &cp, nil
}

func (m *memExamRepo) ListByStatus(_ context.Context, status models.ExamStatus) ([]models.ApplicationExam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ApplicationExam
	for _, e := range m.exams {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memExamRepo) SetStatus(_ context.Context, id string, status models.ExamStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.exams[id]
	e.Status = status
	m.exams[id] = e
	m.statusWrites++
	return nil
}

func (m *memExamRepo) SetElapsed(_ context.Context, id string, elapsedSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.exams[id]
	e.ElapsedSeconds = elapsedSeconds
	m.exams[id] = e
	return nil
}

func (m *memExamRepo) SetScreening(_ context.Context, id string, screening []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.exams[id]
	e.Screening = screening
	m.exams[id] = e
	return nil
}

func (m *memExamRepo) InsertQuestions(_ context.Context, qs []models.ExamQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qrows = append(m.qrows, qs...)
	return nil
}

type memInterviewRepo struct {
	mu        sync.Mutex
	questions []models.InterviewQuestion
	responses []models.InterviewResponse
}

func (m *memInterviewRepo) InsertQuestion(_ context.Context, q *models.InterviewQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, *q)
	return nil
}

func (m *memInterviewRepo) InsertResponse(_ context.Context, r *models.InterviewResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, *r)
	return nil
}

func (m *memInterviewRepo) ListQuestionsByExam(_ context.Context, examID string) ([]models.InterviewQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InterviewQuestion
	for _, q := range m.questions {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memInterviewRepo) ListResponsesByExam(_ context.Context, examID string) ([]models.InterviewResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InterviewResponse
	for _, r := range m.responses {
		if r.ExamID == examID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memInterviewRepo) LatestQuestion(_ context.Context, examID string) (*models.InterviewQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.InterviewQuestion
	for i := range m.questions {
		q := m.questions[i]
		if q.ExamID != examID {
			continue
		}
		if latest == nil || q.CreatedAt.After(latest.CreatedAt) {
			latest = &q
		}
	}
	if latest == nil {
		return nil, utils.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memInterviewRepo) FillAnswer(_ context.Context, responseID, answer string, answeredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.responses {
		if m.responses[i].ID == responseID {
			m.responses[i].Answer = answer
			at := answeredAt
			m.responses[i].AnsweredAt = &at
		}
	}
	return nil
}

type scriptedLLM struct {
	out string
	err error

	mu      sync.Mutex
	prompts []string
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.out, s.err
}

func (s *scriptedLLM) Close() error { return nil }

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log.WithField("component", "interview")
}

func nextQuestionJSON(question, sessionEnded string) string {
	payload := map[string]any{
		"next_question": map[string]any{
			"question":                  question,
			"session_ended":             sessionEnded,
			"focus_area":                "teamwork",
			"question_type":             "opening",
			"rationale":                 "builds rapport",
			"expected_answer_elements":  []string{"motivation", "specifics"},
			"potential_follow_up_paths": []string{"career goals"},
		},
	}
	b, _ := json.Marshal(payload)
	return "```json\n" + string(b) + "\n```"
}

func seedExam(t *testing.T, exams *memExamRepo, id string) {
	t.Helper()
	require.NoError(t, exams.Create(context.Background(), &models.ApplicationExam{
		ID:                 id,
		UserID:             "user-1",
		CompanyDescription: "Makers of fine widgets",
		JobDescription:     "Backend engineer",
		JobRequirements:    "Go, SQL",
		CVContent:          "Five years of Go",
		ApplicationLetter:  "I admire your widget craftsmanship",
		ExamType:           "interview",
		DurationMinutes:    30,
		Status:             models.ExamActive,
	}))
}

func TestNextTurnFirstQuestion(t *testing.T) {
	exams := newMemExamRepo()
	turns := &memInterviewRepo{}
	llm := &scriptedLLM{out: nextQuestionJSON("What drew you to widgets?", "no")}
	h := hub.NewMemoryHub()
	seedExam(t, exams, "exam-1")

	ctx := context.Background()
	sub, cancel, err := h.Subscribe(ctx, hub.UserAddress("user-1", hub.ChannelInterview))
	require.NoError(t, err)
	defer cancel()

	loader := NewContextLoader(exams, turns, nil)
	d := NewDriver(loader, exams, turns, llm, h, nil, testLogger())

	payload, err := d.NextTurn(ctx, "exam-1", "user-1")
	require.NoError(t, err)
	assert.False(t, payload.Hangup)
	assert.Equal(t, "What drew you to widgets?", payload.NQuestion.QText)
	// first turn fills both slots
	assert.Equal(t, payload.NQuestion.QID, payload.PQuestion.QID)

	require.Len(t, turns.questions, 1)
	require.Len(t, turns.responses, 1)
	assert.Empty(t, turns.responses[0].Answer)
	assert.Equal(t, turns.questions[0].ID, turns.responses[0].QuestionID)

	select {
	case b := <-sub:
		assert.Contains(t, string(b), "What drew you to widgets?")
	case <-time.After(time.Second):
		t.Fatal("no interview push received")
	}

	// the prompt carried the application letter for first-question anchoring
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "widget craftsmanship")
}

func TestNextTurnFollowUpPairsPreviousQuestion(t *testing.T) {
	exams := newMemExamRepo()
	turns := &memInterviewRepo{}
	llm := &scriptedLLM{out: nextQuestionJSON("Tell me more about that launch.", "no")}
	h := hub.NewMemoryHub()
	seedExam(t, exams, "exam-2")

	ctx := context.Background()
	prior := &models.InterviewQuestion{
		ID:        "q-prior",
		ExamID:    "exam-2",
		Question:  "What drew you to widgets?",
		CreatedAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, turns.InsertQuestion(ctx, prior))
	require.NoError(t, turns.InsertResponse(ctx, &models.InterviewResponse{
		ID: "r-prior", QuestionID: "q-prior", ExamID: "exam-2", Answer: "I shipped one",
	}))

	loader := NewContextLoader(exams, turns, nil)
	d := NewDriver(loader, exams, turns, llm, h, nil, testLogger())

	payload, err := d.NextTurn(ctx, "exam-2", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "q-prior", payload.PQuestion.QID)
	assert.Equal(t, "I shipped one", payload.PQuestion.AText)
	assert.Equal(t, "Tell me more about that launch.", payload.NQuestion.QText)
	assert.NotEqual(t, payload.PQuestion.QID, payload.NQuestion.QID)
}

// Once a turn exists the prompt's clock runs from its CreatedAt, and the
// computed elapsed seconds are written back to the exam row.
func TestNextTurnReportsElapsedTime(t *testing.T) {
	exams := newMemExamRepo()
	turns := &memInterviewRepo{}
	llm := &scriptedLLM{out: nextQuestionJSON("How do you handle on-call?", "no")}
	h := hub.NewMemoryHub()
	seedExam(t, exams, "exam-5")

	ctx := context.Background()
	require.NoError(t, turns.InsertQuestion(ctx, &models.InterviewQuestion{
		ID:        "q-open",
		ExamID:    "exam-5",
		Question:  "What drew you to widgets?",
		CreatedAt: time.Now().Add(-5 * time.Minute),
	}))

	loader := NewContextLoader(exams, turns, nil)
	d := NewDriver(loader, exams, turns, llm, h, nil, testLogger())

	_, err := d.NextTurn(ctx, "exam-5", "user-1")
	require.NoError(t, err)

	require.Len(t, llm.prompts, 1)
	assert.NotContains(t, llm.prompts[0], "Current time: 0 secs")
	assert.Regexp(t, `Current time: 30\d secs`, llm.prompts[0])
	assert.Contains(t, llm.prompts[0], "Remaining time budget: 25 minutes")

	exam, err := exams.GetByID(ctx, "exam-5")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, exam.ElapsedSeconds, 300)
	assert.Less(t, exam.ElapsedSeconds, 310)
}

func TestNextTurnSessionEnded(t *testing.T) {
	exams := newMemExamRepo()
	turns := &memInterviewRepo{}
	llm := &scriptedLLM{out: nextQuestionJSON("Thank you, that concludes our interview.", "yes")}
	h := hub.NewMemoryHub()
	seedExam(t, exams, "exam-3")

	ctx := context.Background()
	loader := NewContextLoader(exams, turns, nil)
	d := NewDriver(loader, exams, turns, llm, h, nil, testLogger())

	payload, err := d.NextTurn(ctx, "exam-3", "user-1")
	require.NoError(t, err)
	assert.True(t, payload.Hangup)
	assert.Equal(t, 1, exams.statusWrites)

	exam, err := exams.GetByID(ctx, "exam-3")
	require.NoError(t, err)
	assert.Equal(t, models.ExamEnded, exam.Status)

	// no further turns for an ended session
	_, err = d.NextTurn(ctx, "exam-3", "user-1")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeConflict))
	assert.Len(t, turns.questions, 1)
	assert.Equal(t, 1, exams.statusWrites)
}

func TestNextTurnUnparseableOutputIsSoftFailure(t *testing.T) {
	exams := newMemExamRepo()
	turns := &memInterviewRepo{}
	llm := &scriptedLLM{out: "I would rather chat about the weather."}
	h := hub.NewMemoryHub()
	seedExam(t, exams, "exam-4")

	loader := NewContextLoader(exams, turns, nil)
	d := NewDriver(loader, exams, turns, llm, h, nil, testLogger())

	_, err := d.NextTurn(context.Background(), "exam-4", "user-1")
	require.Error(t, err)
	assert.Empty(t, turns.questions)
	assert.Zero(t, exams.statusWrites)
}

func TestBatchGeneratorSkipsInterviewExams(t *testing.T) {
	exams := newMemExamRepo()
	require.NoError(t, exams.Create(context.Background(), &models.ApplicationExam{
		ID: "exam-w", UserID: "user-2", ExamType: "written", Status: models.ExamPending,
		JobDescription: "Backend engineer", JobRequirements: "Go", CVContent: "CV",
	}))
	require.NoError(t, exams.Create(context.Background(), &models.ApplicationExam{
		ID: "exam-i", UserID: "user-3", ExamType: "interview", Status: models.ExamPending,
	}))

	payload := `{"application_id": "exam-w", "questions": [
		{"question": "Explain goroutine scheduling.", "difficulty": "medium", "question_type": "short-answer", "target_skill": "Go", "expected_answer": "GMP model"}
	]}`
	llm := &scriptedLLM{out: "```json\n" + payload + "\n```"}

	g := NewBatchGenerator(exams, llm, hub.NewMemoryHub(), testLogger())
	g.Throttle = 0

	require.NoError(t, g.Run(context.Background()))
	require.Len(t, exams.qrows, 1)
	assert.Equal(t, "exam-w", exams.qrows[0].ExamID)
	assert.True(t, exams.qrows[0].AIGenerated)
	assert.Len(t, llm.prompts, 1)
}
