package discussion

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/content"
	"github.com/trezcool/baraza/core/course"
)

type SubmissionType string

const (
	TypeIndividualChoice SubmissionType = "individual_choice"
	TypeFinalChoice      SubmissionType = "final_choice"
)

type (
	// Message is one student's contribution to a round. Content is stored trimmed.
	Message struct {
		ID          string              `json:"id"`
		ActivityID  string              `json:"activity_id"`
		QuestionID  string              `json:"question_id"`
		RoundID     string              `json:"round_id"`
		GroupID     string              `json:"group_id"`
		AuthorID    string              `json:"author_id"`
		AuthorName  string              `json:"author_name"`
		Content     string              `json:"content"`
		ReplyTo     string              `json:"reply_to,omitempty"`
		Diagnostics content.Diagnostics `json:"meta"`
		CreatedAt   time.Time           `json:"created_at"`
	}

	// Submission is a recorded answer. There is at most one per
	// (activity, question, group, user, type).
	Submission struct {
		ID         string           `json:"id"`
		ActivityID string           `json:"activity_id"`
		QuestionID string           `json:"question_id"`
		GroupID    string           `json:"group_id"`
		UserID     string           `json:"user_id"`
		Type       SubmissionType   `json:"type"`
		Choice     course.ChoiceKey `json:"choice"`
		Rationale  string           `json:"rationale,omitempty"`
		CreatedAt  time.Time        `json:"created_at"`
		UpdatedAt  time.Time        `json:"updated_at"`
	}

	NewMessage struct {
		ActivityID string `json:"activity_id" validate:"required"`
		QuestionID string `json:"question_id" validate:"required"`
		GroupID    string `json:"group_id" validate:"required"`
		RoundID    string `json:"round_id" validate:"required"`
		Content    string `json:"content"`
		ReplyTo    string `json:"reply_to"`
	}

	NewChoice struct {
		ActivityID string `json:"activity_id" validate:"required"`
		QuestionID string `json:"question_id" validate:"required"`
		GroupID    string `json:"group_id" validate:"required"`
		Choice     string `json:"choice" validate:"required,choice"`
		Rationale  string `json:"rationale" validate:"max=2000"`
	}

	// Preview asks for the verdict content would get in a round.
	Preview struct {
		RoundID string `json:"round_id" validate:"required"`
		Content string `json:"content"`
	}
)

// Content is validated by the content package, not here, so that the length rule
// and its message stay in one place.
func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.ReplyTo = core.CleanString(nm.ReplyTo)
	return validate.Struct(nm)
}

func (nc *NewChoice) Validate(validate *validator.Validate) error {
	nc.Choice = strings.ToUpper(core.CleanString(nc.Choice))
	nc.Rationale = core.CleanString(nc.Rationale)
	return validate.Struct(nc)
}

func (p *Preview) Validate(validate *validator.Validate) error {
	return validate.Struct(p)
}
