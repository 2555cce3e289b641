package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/utils"
	"gorm.io/gorm"
)

type InterviewRepo interface {
	InsertQuestion(ctx context.Context, q *models.InterviewQuestion) error
	InsertResponse(ctx context.Context, resp *models.InterviewResponse) error
	ListQuestionsByExam(ctx context.Context, examID string) ([]models.InterviewQuestion, error)
	ListResponsesByExam(ctx context.Context, examID string) ([]models.InterviewResponse, error)
	LatestQuestion(ctx context.Context, examID string) (*models.InterviewQuestion, error)
	FillAnswer(ctx context.Context, responseID, answer string, answeredAt time.Time) error
}

type interviewRepo struct {
	db *gorm.DB
}

func NewInterviewRepo(db *gorm.DB) InterviewRepo {
	return &interviewRepo{db: db}
}

func (r *interviewRepo) InsertQuestion(ctx context.Context, q *models.InterviewQuestion) error {
	return r.db.WithContext(ctx).Create(q).Error
}

func (r *interviewRepo) InsertResponse(ctx context.Context, resp *models.InterviewResponse) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

func (r *interviewRepo) ListQuestionsByExam(ctx context.Context, examID string) ([]models.InterviewQuestion, error) {
	var rows []models.InterviewQuestion
	err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *interviewRepo) ListResponsesByExam(ctx context.Context, examID string) ([]models.InterviewResponse, error) {
	var rows []models.InterviewResponse
	err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *interviewRepo) LatestQuestion(ctx context.Context, examID string) (*models.InterviewQuestion, error) {
	var row models.InterviewQuestion
	err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("created_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *interviewRepo) FillAnswer(ctx context.Context, responseID, answer string, answeredAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.InterviewResponse{}).
		Where("id = ?", responseID).
		Updates(map[string]any{"answer": answer, "answered_at": answeredAt.UTC()}).Error
}
