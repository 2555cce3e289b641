package interview

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/llmjson"
	"github.com/hireloop/proctor/internal/metrics"
	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/providers/llm"
	"github.com/hireloop/proctor/internal/repositories/postgres"
	"github.com/hireloop/proctor/internal/utils"
)

// NextQuestion is the structured payload the model must return for one
// adaptive turn.
type NextQuestion struct {
	Question               string   `json:"question"`
	SessionEnded           string   `json:"session_ended"`
	FocusArea              string   `json:"focus_area"`
	QuestionType           string   `json:"question_type"`
	Rationale              string   `json:"rationale"`
	ExpectedAnswerElements []string `json:"expected_answer_elements"`
	PotentialFollowUpPaths []string `json:"potential_follow_up_paths"`
}

type nextQuestionEnvelope struct {
	NextQuestion NextQuestion `json:"next_question"`
}

// QuestionRef is the wire shape of one question/answer pair in a turn push.
type QuestionRef struct {
	QID   string `json:"q_id"`
	QText string `json:"q_text"`
	AID   string `json:"a_id"`
	AText string `json:"a_text"`
}

// TurnPayload is pushed to the user's interview channel after each
// generation: the just-completed turn, the new turn awaiting an answer, and
// the hangup flag telling the client to stop interaction.
type TurnPayload struct {
	UserID    string      `json:"user_id"`
	PQuestion QuestionRef `json:"p_question"`
	NQuestion QuestionRef `json:"n_question"`
	Hangup    bool        `json:"hangup"`
}

// EmbedFunc optionally supplies a question-text embedding for the stored
// turn; a nil func leaves the vector column empty.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Driver generates the next adaptive interview question for an exam. It is
// invoked from the background interview worker, never inline on a
// connection.
type Driver struct {
	loader *ContextLoader
	exams  postgres.ExamRepo
	turns  postgres.InterviewRepo
	llm    llm.Provider
	hub    hub.Hub
	embed  EmbedFunc
	log    *logrus.Entry
}

func NewDriver(loader *ContextLoader, exams postgres.ExamRepo, turns postgres.InterviewRepo, provider llm.Provider, h hub.Hub, embed EmbedFunc, log *logrus.Entry) *Driver {
	return &Driver{
		loader: loader,
		exams:  exams,
		turns:  turns,
		llm:    provider,
		hub:    h,
		embed:  embed,
		log:    log,
	}
}

// NextTurn runs one generation cycle: prompt, parse, persist the new turn
// with an empty placeholder answer, and push the turn pair to the user's
// interview channel. A "yes" session-ended flag marks the exam ended before
// the push, so no later invocation can generate for it.
func (d *Driver) NextTurn(ctx context.Context, examID, userID string) (*TurnPayload, error) {
	const op = "interview.Driver.NextTurn"

	ec, err := d.loader.Load(ctx, examID)
	if err != nil {
		metrics.InterviewGenerations.WithLabelValues("context_error").Inc()
		return nil, err
	}
	if ec.Exam.Ended() {
		return nil, utils.E(utils.CodeConflict, op, "exam session already ended", nil)
	}

	// Elapsed time is anchored to the opening question so the prompt's time
	// budget tracks real interview progress, not exam creation.
	if ec.FirstAskedAt != nil {
		elapsed := int(time.Since(*ec.FirstAskedAt).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
		ec.Exam.ElapsedSeconds = elapsed
		if err := d.exams.SetElapsed(ctx, examID, elapsed); err != nil {
			d.log.WithError(err).WithField("exam_id", examID).Warn("elapsed time write failed")
		}
	}

	prompt, err := render(nextQuestionTmpl, nextQuestionPromptData{
		CompanyInfo:       ec.Exam.CompanyDescription,
		JobDescription:    ec.Exam.JobDescription + ec.Exam.JobRequirements,
		CVContent:         ec.Exam.CVContent,
		ApplicationLetter: ec.Exam.ApplicationLetter,
		PreviousQuestions: ec.HistoryJSON(),
		DurationMinutes:   ec.Exam.DurationMinutes,
		ElapsedSeconds:    ec.Exam.ElapsedSeconds,
		RemainingMinutes:  ec.Exam.RemainingMinutes(),
	})
	if err != nil {
		metrics.InterviewGenerations.WithLabelValues("prompt_error").Inc()
		return nil, utils.E(utils.CodeInternal, op, "prompt render failed", err)
	}

	raw, err := d.llm.Generate(ctx, prompt)
	if err != nil {
		metrics.InterviewGenerations.WithLabelValues("llm_error").Inc()
		return nil, utils.E(utils.CodeUnavailable, op, "question generation failed", err)
	}

	parsed, ok := llmjson.Decode(raw, llmjson.Options{
		ExpectKeys: []string{"next_question"},
	})
	if !ok {
		metrics.InterviewGenerations.WithLabelValues("parse_error").Inc()
		d.log.WithField("exam_id", examID).Warn("unparseable question payload, skipping turn")
		return nil, utils.E(utils.CodeInternal, op, "unparseable model output", nil)
	}

	var envelope nextQuestionEnvelope
	if err := json.Unmarshal(parsed, &envelope); err != nil {
		metrics.InterviewGenerations.WithLabelValues("parse_error").Inc()
		return nil, utils.E(utils.CodeInternal, op, "malformed question payload", err)
	}
	nq := envelope.NextQuestion
	if strings.TrimSpace(nq.Question) == "" {
		metrics.InterviewGenerations.WithLabelValues("parse_error").Inc()
		return nil, utils.E(utils.CodeInternal, op, "model returned empty question", nil)
	}

	ended := strings.EqualFold(strings.TrimSpace(nq.SessionEnded), "yes")
	if ended {
		if err := d.exams.SetStatus(ctx, examID, models.ExamEnded); err != nil {
			metrics.InterviewGenerations.WithLabelValues("persist_error").Inc()
			return nil, utils.E(utils.CodeInternal, op, "failed to end exam session", err)
		}
		d.loader.Invalidate(ctx, examID)
	}

	prev, err := d.turns.LatestQuestion(ctx, examID)
	if err != nil && err != utils.ErrNotFound {
		metrics.InterviewGenerations.WithLabelValues("persist_error").Inc()
		return nil, utils.E(utils.CodeInternal, op, "failed to load previous turn", err)
	}

	question, answer, err := d.persistTurn(ctx, examID, nq, ended)
	if err != nil {
		metrics.InterviewGenerations.WithLabelValues("persist_error").Inc()
		return nil, err
	}

	payload := d.buildPayload(ctx, userID, prev, question, answer, ended)
	if err := d.hub.Publish(ctx, hub.UserAddress(userID, hub.ChannelInterview), map[string]any{"message": payload}); err != nil {
		metrics.PublishFailures.Inc()
		d.log.WithError(err).WithField("user_id", userID).Warn("interview turn push failed")
	}

	metrics.InterviewGenerations.WithLabelValues("ok").Inc()
	return payload, nil
}

func (d *Driver) persistTurn(ctx context.Context, examID string, nq NextQuestion, ended bool) (*models.InterviewQuestion, *models.InterviewResponse, error) {
	const op = "interview.Driver.persistTurn"

	expected, _ := json.Marshal(nq.ExpectedAnswerElements)
	followUps, _ := json.Marshal(nq.PotentialFollowUpPaths)

	question := &models.InterviewQuestion{
		ID:               uuid.NewString(),
		ExamID:           examID,
		Question:         nq.Question,
		QuestionType:     nq.QuestionType,
		FocusArea:        nq.FocusArea,
		Rationale:        nq.Rationale,
		ExpectedElements: datatypes.JSON(expected),
		FollowUpPaths:    datatypes.JSON(followUps),
		SessionEnded:     ended,
		CreatedAt:        time.Now().UTC(),
	}
	if d.embed != nil {
		if vec, err := d.embed(ctx, nq.Question); err == nil && len(vec) > 0 {
			question.Embedding = pgvector.NewVector(vec)
		}
	}
	if err := d.turns.InsertQuestion(ctx, question); err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to insert question", err)
	}

	answer := &models.InterviewResponse{
		ID:         uuid.NewString(),
		QuestionID: question.ID,
		ExamID:     examID,
		Answer:     "",
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.turns.InsertResponse(ctx, answer); err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to insert placeholder response", err)
	}
	return question, answer, nil
}

// buildPayload pairs the most recent previous question with the new one.
// With no prior history the new turn fills both slots.
func (d *Driver) buildPayload(ctx context.Context, userID string, prev *models.InterviewQuestion, question *models.InterviewQuestion, answer *models.InterviewResponse, ended bool) *TurnPayload {
	newRef := QuestionRef{
		QID:   question.ID,
		QText: question.Question,
		AID:   answer.ID,
		AText: answer.Answer,
	}
	prevRef := newRef

	if prev != nil {
		prevRef = QuestionRef{QID: prev.ID, QText: prev.Question}
		if resps, err := d.turns.ListResponsesByExam(ctx, question.ExamID); err == nil {
			for _, r := range resps {
				if r.QuestionID == prev.ID {
					prevRef.AID = r.ID
					prevRef.AText = r.Answer
					break
				}
			}
		}
	}

	return &TurnPayload{
		UserID:    userID,
		PQuestion: prevRef,
		NQuestion: newRef,
		Hangup:    ended,
	}
}
