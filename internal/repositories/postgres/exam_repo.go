package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/utils"
	"gorm.io/gorm"
)

type ExamRepo interface {
	Create(ctx context.Context, e *models.ApplicationExam) error
	GetByID(ctx context.Context, id string) (*models.ApplicationExam, error)
	ListByStatus(ctx context.Context, status models.ExamStatus) ([]models.ApplicationExam, error)
	SetStatus(ctx context.Context, id string, status models.ExamStatus) error
	SetElapsed(ctx context.Context, id string, elapsedSeconds int) error
	SetScreening(ctx context.Context, id string, screening []byte) error
	InsertQuestions(ctx context.Context, qs []models.ExamQuestion) error
}

type examRepo struct {
	db *gorm.DB
}

func NewExamRepo(db *gorm.DB) ExamRepo {
	return &examRepo{db: db}
}

func (r *examRepo) Create(ctx context.Context, e *models.ApplicationExam) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *examRepo) GetByID(ctx context.Context, id string) (*models.ApplicationExam, error) {
	var row models.ApplicationExam
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *examRepo) ListByStatus(ctx context.Context, status models.ExamStatus) ([]models.ApplicationExam, error) {
	var rows []models.ApplicationExam
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *examRepo) SetStatus(ctx context.Context, id string, status models.ExamStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.ApplicationExam{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *examRepo) SetElapsed(ctx context.Context, id string, elapsedSeconds int) error {
	return r.db.WithContext(ctx).
		Model(&models.ApplicationExam{}).
		Where("id = ?", id).
		Update("elapsed_seconds", elapsedSeconds).Error
}

func (r *examRepo) InsertQuestions(ctx context.Context, qs []models.ExamQuestion) error {
	if len(qs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&qs).Error
}

func (r *examRepo) SetScreening(ctx context.Context, id string, screening []byte) error {
	return r.db.WithContext(ctx).
		Model(&models.ApplicationExam{}).
		Where("id = ?", id).
		Updates(map[string]any{"screening": screening, "updated_at": time.Now().UTC()}).Error
}
