package activity

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/baraza/core"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusRunning Status = "running"
	StatusEnded   Status = "ended"
)

type (
	Activity struct {
		ID                   string    `json:"id"`
		CourseID             string    `json:"course_id"`
		Title                string    `json:"title"`
		Description          string    `json:"description,omitempty"`
		Status               Status    `json:"status"`
		QuestionIDs          []string  `json:"question_ids"`
		CurrentQuestionIndex int       `json:"current_question_index"`
		CreatedBy            string    `json:"created_by"`
		CreatedAt            time.Time `json:"created_at"`
		UpdatedAt            time.Time `json:"updated_at"`
	}

	NewActivity struct {
		Title       string   `json:"title" validate:"required,notblank,max=200"`
		Description string   `json:"description"`
		QuestionIDs []string `json:"question_ids" validate:"required,min=1,dive,required"`
	}
)

func (act Activity) IsRunning() bool {
	return act.Status == StatusRunning
}

// CurrentQuestionID returns the question the activity cursor points at.
func (act Activity) CurrentQuestionID() string {
	if act.CurrentQuestionIndex < 0 || act.CurrentQuestionIndex >= len(act.QuestionIDs) {
		return ""
	}
	return act.QuestionIDs[act.CurrentQuestionIndex]
}

func (act Activity) HasQuestion(questionID string) bool {
	for _, id := range act.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}
