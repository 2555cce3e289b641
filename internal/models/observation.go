package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExamObservation aggregates perception detections for one exam. The JSON
// columns hold append-only lists of timestamped snapshot entries; appends
// must go through the observation recorder, which serializes them per exam.
type ExamObservation struct {
	ExamID string `gorm:"column:exam_id;type:uuid;primaryKey" json:"exam_id"`

	Clothing        datatypes.JSON `gorm:"column:o_clothing;type:jsonb" json:"o_clothing"`
	FaceExpressions datatypes.JSON `gorm:"column:o_face_expressions;type:jsonb" json:"o_face_expressions"`
	Gestures        datatypes.JSON `gorm:"column:o_gestures;type:jsonb" json:"o_gestures"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (ExamObservation) TableName() string { return "exam_observations" }
