package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/proctor/internal/interview"
	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/repositories/postgres"
	"github.com/hireloop/proctor/internal/utils"
)

type ExamHandler struct {
	exams postgres.ExamRepo
	turns postgres.InterviewRepo
	obs   postgres.ObservationRepo
	agent *interview.Agent
	batch *interview.BatchGenerator
	redis *redis.Client
	log   *logrus.Entry
}

func NewExamHandler(
	exams postgres.ExamRepo,
	turns postgres.InterviewRepo,
	obs postgres.ObservationRepo,
	agent *interview.Agent,
	batch *interview.BatchGenerator,
	rdb *redis.Client,
	log *logrus.Entry,
) *ExamHandler {
	return &ExamHandler{
		exams: exams,
		turns: turns,
		obs:   obs,
		agent: agent,
		batch: batch,
		redis: rdb,
		log:   log,
	}
}

type CreateExamRequest struct {
	UserID             string `json:"user_id" binding:"required"`
	CompanyDescription string `json:"company_description"`
	JobDescription     string `json:"job_description" binding:"required"`
	JobRequirements    string `json:"job_requirements"`
	CVContent          string `json:"cv_content"`
	ApplicationLetter  string `json:"application_letter"`
	ExamType           string `json:"exam_type" binding:"required"` // interview|written
	DurationMinutes    int    `json:"duration_minutes"`
}

func (h *ExamHandler) Create(c *gin.Context) {
	var req CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ExamHandler.Create", "invalid request body", err))
		return
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 30
	}

	now := time.Now().UTC()
	exam := &models.ApplicationExam{
		ID:     uuid.NewString(),
		UserID: req.UserID,

		CompanyDescription: req.CompanyDescription,
		JobDescription:     req.JobDescription,
		JobRequirements:    req.JobRequirements,
		CVContent:          req.CVContent,
		ApplicationLetter:  req.ApplicationLetter,

		ExamType:        req.ExamType,
		DurationMinutes: req.DurationMinutes,
		Status:          models.ExamPending,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.exams.Create(c.Request.Context(), exam); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exam)
}

// exam returns the record if the caller owns it or is an admin.
func (h *ExamHandler) exam(c *gin.Context, op string) (*models.ApplicationExam, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}

	exam, err := h.exams.GetByID(c.Request.Context(), c.Param("exam_id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}

	role, _ := c.Get("role")
	if exam.UserID != userID && role != "admin" {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return nil, false
	}
	return exam, true
}

func (h *ExamHandler) Get(c *gin.Context) {
	exam, ok := h.exam(c, "ExamHandler.Get")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, exam)
}

func (h *ExamHandler) Start(c *gin.Context) {
	const op = "ExamHandler.Start"

	exam, ok := h.exam(c, op)
	if !ok {
		return
	}
	if exam.Status != models.ExamPending {
		writeError(c, utils.E(utils.CodeConflict, op, "exam already started", nil))
		return
	}

	if err := h.exams.SetStatus(c.Request.Context(), exam.ID, models.ExamActive); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.ExamActive})
}

// RequestTurn enqueues the next adaptive question. Generation happens on the
// turn worker; the finished question arrives over the interview websocket.
func (h *ExamHandler) RequestTurn(c *gin.Context) {
	const op = "ExamHandler.RequestTurn"

	exam, ok := h.exam(c, op)
	if !ok {
		return
	}
	if exam.Ended() {
		writeError(c, utils.E(utils.CodeConflict, op, "exam has ended", nil))
		return
	}

	err := h.redis.XAdd(c.Request.Context(), &redis.XAddArgs{
		Stream: interview.TurnStream,
		Values: map[string]any{
			"exam_id": exam.ID,
			"user_id": exam.UserID,
		},
	}).Err()
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to enqueue turn request", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

type AnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

func (h *ExamHandler) Answer(c *gin.Context) {
	const op = "ExamHandler.Answer"

	if _, ok := requireUserID(c); !ok {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	responseID := c.Param("response_id")
	if err := h.turns.FillAnswer(c.Request.Context(), responseID, req.Answer, time.Now().UTC()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *ExamHandler) Questions(c *gin.Context) {
	exam, ok := h.exam(c, "ExamHandler.Questions")
	if !ok {
		return
	}

	qs, err := h.turns.ListQuestionsByExam(c.Request.Context(), exam.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, qs)
}

func (h *ExamHandler) Observations(c *gin.Context) {
	exam, ok := h.exam(c, "ExamHandler.Observations")
	if !ok {
		return
	}

	o, err := h.obs.Get(c.Request.Context(), exam.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Screen runs the screening agent over the exam's CV and application letter.
func (h *ExamHandler) Screen(c *gin.Context) {
	examID := c.Param("exam_id")
	if err := h.agent.Screen(c.Request.Context(), examID); err != nil {
		writeError(c, err)
		return
	}

	exam, err := h.exams.GetByID(c.Request.Context(), examID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"screening": exam.Screening})
}

type ParseCVRequest struct {
	CVText string `json:"cv_text" binding:"required"`
}

func (h *ExamHandler) ParseCV(c *gin.Context) {
	const op = "ExamHandler.ParseCV"

	var req ParseCVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	markdown, err := h.agent.ParseCV(c.Request.Context(), req.CVText)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markdown": markdown})
}

// GenerateBatch kicks off written-question generation for every pending exam.
// The run is throttled per candidate, so it detaches from the request.
func (h *ExamHandler) GenerateBatch(c *gin.Context) {
	go func() {
		if err := h.batch.Run(context.Background()); err != nil {
			h.log.WithError(err).Error("batch generation run failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
