package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hireloop/proctor/internal/cache"
	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/repositories/postgres"
	"github.com/hireloop/proctor/internal/utils"
)

// QA is one completed turn of the conversation history fed back into the
// prompt.
type QA struct {
	Question   string `json:"question"`
	AskedAt    string `json:"asked_at"`
	Answer     string `json:"answer"`
	AnsweredAt string `json:"answered_at"`
}

// ExamContext is the full prompting context for one candidate's exam.
// FirstAskedAt anchors elapsed-time accounting; nil until the opening
// question has been asked.
type ExamContext struct {
	Exam         models.ApplicationExam
	History      []QA
	FirstAskedAt *time.Time
}

func (c *ExamContext) HistoryJSON() string {
	if len(c.History) == 0 {
		return "[]"
	}
	b, err := json.Marshal(c.History)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ContextLoader assembles ExamContext from postgres, with a short-lived
// cache in front of the exam row since it is immutable during a session
// apart from status and elapsed time.
type ContextLoader struct {
	exams postgres.ExamRepo
	turns postgres.InterviewRepo
	cache cache.Cache
}

const examCacheTTL = 2 * time.Minute

func NewContextLoader(exams postgres.ExamRepo, turns postgres.InterviewRepo, c cache.Cache) *ContextLoader {
	return &ContextLoader{exams: exams, turns: turns, cache: c}
}

func (l *ContextLoader) Load(ctx context.Context, examID string) (*ExamContext, error) {
	const op = "interview.ContextLoader.Load"

	exam, err := l.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	questions, err := l.turns.ListQuestionsByExam(ctx, examID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list questions", err)
	}
	responses, err := l.turns.ListResponsesByExam(ctx, examID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list responses", err)
	}

	byQuestion := make(map[string]models.InterviewResponse, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}

	out := &ExamContext{Exam: *exam}
	for _, q := range questions {
		if out.FirstAskedAt == nil || q.CreatedAt.Before(*out.FirstAskedAt) {
			at := q.CreatedAt
			out.FirstAskedAt = &at
		}
		qa := QA{
			Question: q.Question,
			AskedAt:  ago(q.CreatedAt),
		}
		if r, ok := byQuestion[q.ID]; ok {
			qa.Answer = r.Answer
			if r.AnsweredAt != nil {
				qa.AnsweredAt = ago(*r.AnsweredAt)
			}
		}
		out.History = append(out.History, qa)
	}
	return out, nil
}

func (l *ContextLoader) loadExam(ctx context.Context, examID string) (*models.ApplicationExam, error) {
	const op = "interview.ContextLoader.loadExam"

	fill := func() (any, error) {
		exam, err := l.exams.GetByID(ctx, examID)
		if err != nil {
			if err == utils.ErrNotFound {
				return nil, utils.E(utils.CodeNotFound, op, "exam not found", err)
			}
			return nil, utils.E(utils.CodeInternal, op, "failed to load exam", err)
		}
		return exam, nil
	}

	if l.cache == nil {
		v, err := fill()
		if err != nil {
			return nil, err
		}
		return v.(*models.ApplicationExam), nil
	}

	var cached models.ApplicationExam
	if err := l.cache.Remember(ctx, "exam_ctx:"+examID, examCacheTTL, &cached, fill); err != nil {
		return nil, err
	}
	return &cached, nil
}

// Invalidate drops the cached exam row, used after status writes.
func (l *ContextLoader) Invalidate(ctx context.Context, examID string) {
	if l.cache != nil {
		_ = l.cache.Del(ctx, "exam_ctx:"+examID)
	}
}

func ago(t time.Time) string {
	secs := int(time.Since(t).Seconds())
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d secs ago", secs)
}
