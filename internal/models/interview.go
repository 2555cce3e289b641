package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// InterviewQuestion is one generated turn of the adaptive interview,
// including the driver's structured reasoning about it. Embedding supports
// duplicate-topic checks across a candidate's history.
type InterviewQuestion struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ExamID string `gorm:"column:exam_id;type:uuid;index" json:"exam_id"`

	Question     string `gorm:"column:question;type:text" json:"question"`
	QuestionType string `gorm:"column:question_type;type:text" json:"question_type"`
	FocusArea    string `gorm:"column:focus_area;type:text" json:"focus_area"`
	Rationale    string `gorm:"column:rationale;type:text" json:"rationale"`

	ExpectedElements datatypes.JSON `gorm:"column:expected_elements;type:jsonb" json:"expected_elements"`
	FollowUpPaths    datatypes.JSON `gorm:"column:follow_up_paths;type:jsonb" json:"follow_up_paths"`

	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"embedding"`

	SessionEnded bool `gorm:"column:session_ended" json:"session_ended"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (InterviewQuestion) TableName() string { return "interview_questions" }

// InterviewResponse pairs a question with the candidate's answer. Created
// empty when the question is issued; filled in when the answer arrives.
type InterviewResponse struct {
	ID         string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	QuestionID string `gorm:"column:question_id;type:uuid;index" json:"question_id"`
	ExamID     string `gorm:"column:exam_id;type:uuid;index" json:"exam_id"`

	Answer     string     `gorm:"column:answer;type:text" json:"answer"`
	AnsweredAt *time.Time `gorm:"column:answered_at;type:timestamptz" json:"answered_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (InterviewResponse) TableName() string { return "interview_responses" }
