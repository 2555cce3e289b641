package models

import (
	"time"

	"gorm.io/datatypes"
)

type ExamStatus string

const (
	ExamPending ExamStatus = "pending"
	ExamActive  ExamStatus = "active"
	ExamEnded   ExamStatus = "ended"
)

// ApplicationExam is one candidate's live interview exam, including the
// context snapshot the question driver prompts with.
type ApplicationExam struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index" json:"user_id"`

	CompanyDescription string `gorm:"column:company_description;type:text" json:"company_description"`
	JobDescription     string `gorm:"column:job_description;type:text" json:"job_description"`
	JobRequirements    string `gorm:"column:job_requirements;type:text" json:"job_requirements"`
	CVContent          string `gorm:"column:cv_content;type:text" json:"cv_content"`
	ApplicationLetter  string `gorm:"column:application_letter;type:text" json:"application_letter"`

	ExamType string `gorm:"column:exam_type;type:text" json:"exam_type"` // interview|written

	DurationMinutes int        `gorm:"column:duration_minutes;type:integer" json:"duration_minutes"`
	ElapsedSeconds  int        `gorm:"column:elapsed_seconds;type:integer" json:"elapsed_seconds"`
	Status          ExamStatus `gorm:"column:status;type:text;index" json:"status"`

	// Screening output from the CV agent, raw model JSON.
	Screening datatypes.JSON `gorm:"column:screening;type:jsonb" json:"screening,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (ApplicationExam) TableName() string { return "application_exams" }

func (e *ApplicationExam) Ended() bool { return e.Status == ExamEnded }

// ExamQuestion is a pre-generated written exam question, produced by the
// batch generator ahead of the exam rather than adaptively during it.
type ExamQuestion struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ExamID string `gorm:"column:exam_id;type:uuid;index" json:"exam_id"`

	Question      string         `gorm:"column:question;type:text" json:"question"`
	QuestionType  string         `gorm:"column:question_type;type:text" json:"question_type"`
	Difficulty    string         `gorm:"column:difficulty;type:text" json:"difficulty"`
	TargetSkill   string         `gorm:"column:target_skill;type:text" json:"target_skill"`
	Choices       datatypes.JSON `gorm:"column:choices;type:jsonb" json:"choices"`
	CorrectAnswer string         `gorm:"column:correct_answer;type:text" json:"correct_answer"`
	ScoreWeight   float64        `gorm:"column:score_weight;type:numeric" json:"score_weight"`
	AIGenerated   bool           `gorm:"column:ai_generated" json:"ai_generated"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (ExamQuestion) TableName() string { return "exam_questions" }

// RemainingMinutes reports the time budget left for question pacing.
func (e *ApplicationExam) RemainingMinutes() int {
	rem := e.DurationMinutes - e.ElapsedSeconds/60
	if rem < 0 {
		return 0
	}
	return rem
}
