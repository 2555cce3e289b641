package interview

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/proctor/internal/llmjson"
	"github.com/hireloop/proctor/internal/providers/llm"
	"github.com/hireloop/proctor/internal/repositories/postgres"
	"github.com/hireloop/proctor/internal/utils"
)

// Agent covers the non-interactive generative tasks around an application:
// CV parsing and candidate screening.
type Agent struct {
	exams postgres.ExamRepo
	llm   llm.Provider
	log   *logrus.Entry
}

func NewAgent(exams postgres.ExamRepo, provider llm.Provider, log *logrus.Entry) *Agent {
	return &Agent{exams: exams, llm: provider, log: log}
}

// ParseCV extracts a candidate's CV into clean Markdown for prompting.
func (a *Agent) ParseCV(ctx context.Context, cvText string) (string, error) {
	const op = "interview.Agent.ParseCV"

	if strings.TrimSpace(cvText) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "cv text is required", nil)
	}

	prompt, err := render(cvParseTmpl, struct{ CVText string }{CVText: cvText})
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "prompt render failed", err)
	}

	out, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "cv parsing failed", err)
	}
	return llmjson.StripFence(out), nil
}

// Screen runs the screening prompt over one exam's application data and
// stores the decision JSON on the exam row.
func (a *Agent) Screen(ctx context.Context, examID string) error {
	const op = "interview.Agent.Screen"

	exam, err := a.exams.GetByID(ctx, examID)
	if err != nil {
		if err == utils.ErrNotFound {
			return utils.E(utils.CodeNotFound, op, "exam not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load exam", err)
	}

	prompt, err := render(screeningTmpl, struct {
		ExamID            string
		JobDescription    string
		JobRequirements   string
		ApplicationLetter string
		CVContent         string
	}{
		ExamID:            exam.ID,
		JobDescription:    exam.JobDescription,
		JobRequirements:   exam.JobRequirements,
		ApplicationLetter: exam.ApplicationLetter,
		CVContent:         exam.CVContent,
	})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "prompt render failed", err)
	}

	raw, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "screening failed", err)
	}

	parsed, ok := llmjson.Decode(raw, llmjson.Options{
		ExpectKeys: []string{"decision"},
	})
	if !ok {
		return utils.E(utils.CodeInternal, op, "unparseable screening payload", nil)
	}

	if err := a.exams.SetScreening(ctx, examID, parsed); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store screening result", err)
	}
	a.log.WithField("exam_id", examID).Info("candidate screening stored")
	return nil
}
