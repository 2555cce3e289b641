package interview

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/llmjson"
	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/providers/llm"
	"github.com/hireloop/proctor/internal/repositories/postgres"
	"github.com/hireloop/proctor/internal/utils"
)

type batchQuestion struct {
	Question         string   `json:"question"`
	Difficulty       string   `json:"difficulty"`
	Choices          []string `json:"choices"`
	QuestionType     string   `json:"question_type"`
	TargetSkill      string   `json:"target_skill"`
	ExpectedAnswer   string   `json:"expected_answer"`
	AnswerGuidelines string   `json:"answer_guidelines"`
}

type batchEnvelope struct {
	ApplicationID string          `json:"application_id"`
	Questions     []batchQuestion `json:"questions"`
}

// BatchGenerator pre-generates written exam questions for every pending
// exam. Throttle spaces out model calls between candidates; whether the
// backend enforces a hard rate limit is unknown, so the delay is
// configurable rather than fixed.
type BatchGenerator struct {
	exams    postgres.ExamRepo
	llm      llm.Provider
	hub      hub.Hub
	log      *logrus.Entry
	Throttle time.Duration

	NumQuestions int
}

func NewBatchGenerator(exams postgres.ExamRepo, provider llm.Provider, h hub.Hub, log *logrus.Entry) *BatchGenerator {
	return &BatchGenerator{
		exams:        exams,
		llm:          provider,
		hub:          h,
		log:          log,
		Throttle:     time.Minute,
		NumQuestions: 10,
	}
}

// Run generates questions for all pending written exams. A failed candidate
// is logged and skipped; the batch continues.
func (g *BatchGenerator) Run(ctx context.Context) error {
	const op = "interview.BatchGenerator.Run"

	exams, err := g.exams.ListByStatus(ctx, models.ExamPending)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to list pending exams", err)
	}

	for i, exam := range exams {
		if exam.ExamType == "interview" {
			// adaptive exams get questions live from the driver
			continue
		}
		if err := g.generateFor(ctx, &exam); err != nil {
			g.log.WithError(err).WithField("exam_id", exam.ID).Warn("batch generation failed for candidate")
		}
		g.notify(ctx, exam.UserID, "Question generation complete for exam "+exam.ID)

		if i < len(exams)-1 && g.Throttle > 0 {
			select {
			case <-time.After(g.Throttle):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (g *BatchGenerator) generateFor(ctx context.Context, exam *models.ApplicationExam) error {
	const op = "interview.BatchGenerator.generateFor"

	prompt, err := render(batchQuestionsTmpl, batchPromptData{
		ExamID:          exam.ID,
		NumQuestions:    g.NumQuestions,
		JobDescription:  exam.JobDescription,
		JobRequirements: exam.JobRequirements,
		CVContent:       exam.CVContent,
	})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "prompt render failed", err)
	}

	raw, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "question generation failed", err)
	}

	parsed, ok := llmjson.Decode(raw, llmjson.Options{
		ExpectKeys: []string{"questions", "application_id"},
		WrapKey:    "questions",
	})
	if !ok {
		return utils.E(utils.CodeInternal, op, "unparseable questions payload", nil)
	}

	var envelope batchEnvelope
	if err := json.Unmarshal(parsed, &envelope); err != nil {
		return utils.E(utils.CodeInternal, op, "malformed questions payload", err)
	}

	rows := make([]models.ExamQuestion, 0, len(envelope.Questions))
	now := time.Now().UTC()
	for _, q := range envelope.Questions {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		choices, _ := json.Marshal(q.Choices)
		rows = append(rows, models.ExamQuestion{
			ID:            uuid.NewString(),
			ExamID:        exam.ID,
			Question:      q.Question,
			QuestionType:  q.QuestionType,
			Difficulty:    q.Difficulty,
			TargetSkill:   q.TargetSkill,
			Choices:       datatypes.JSON(choices),
			CorrectAnswer: q.ExpectedAnswer,
			ScoreWeight:   1,
			AIGenerated:   true,
			CreatedAt:     now,
		})
	}
	if len(rows) == 0 {
		return utils.E(utils.CodeInternal, op, "no usable questions recovered", nil)
	}

	if err := g.exams.InsertQuestions(ctx, rows); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store questions", err)
	}

	g.log.WithFields(logrus.Fields{"exam_id": exam.ID, "count": len(rows)}).Info("exam questions generated")
	return nil
}

func (g *BatchGenerator) notify(ctx context.Context, userID, msg string) {
	addr := hub.UserAddress(userID, hub.ChannelNotification)
	if err := g.hub.Publish(ctx, addr, map[string]any{"message": msg}); err != nil {
		g.log.WithError(err).WithField("user_id", userID).Warn("notification push failed")
	}
}
