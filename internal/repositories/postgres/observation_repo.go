package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ObservationRepo interface {
	Get(ctx context.Context, examID string) (*models.ExamObservation, error)
	Save(ctx context.Context, o *models.ExamObservation) error
}

type observationRepo struct {
	db *gorm.DB
}

func NewObservationRepo(db *gorm.DB) ObservationRepo {
	return &observationRepo{db: db}
}

func (r *observationRepo) Get(ctx context.Context, examID string) (*models.ExamObservation, error) {
	var row models.ExamObservation
	err := r.db.WithContext(ctx).Where("exam_id = ?", examID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *observationRepo) Save(ctx context.Context, o *models.ExamObservation) error {
	o.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_id"}},
			UpdateAll: true,
		}).
		Create(o).Error
}
