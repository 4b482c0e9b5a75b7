package group

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/identity"
)

type (
	Member struct {
		UserID      string `json:"user_id"` // profile id, or session id for guests
		DisplayName string `json:"display_name"`
		SeatNo      int    `json:"seat_no"`
	}

	// FinalAnswer is the group's consensus on one question. It is written once.
	FinalAnswer struct {
		QuestionID  string           `json:"question_id"`
		Choice      course.ChoiceKey `json:"choice"`
		Rationale   string           `json:"rationale"`
		SubmittedBy string           `json:"submitted_by"`
		SubmittedAt time.Time        `json:"submitted_at"`
	}

	Group struct {
		ID           string        `json:"id"`
		ActivityID   string        `json:"activity_id"`
		Name         string        `json:"name"`
		LeaderID     string        `json:"leader_id"`
		Members      []Member      `json:"members"`
		FinalAnswers []FinalAnswer `json:"final_answers"`
		CreatedAt    time.Time     `json:"created_at"`
	}

	NewGroup struct {
		Name      string   `json:"name" validate:"required,notblank,max=100"`
		LeaderID  string   `json:"leader_id" validate:"required"`
		MemberIDs []string `json:"member_ids" validate:"required,min=1,dive,required"`
	}

	AutoAssign struct {
		GroupSize int `json:"group_size" validate:"omitempty,min=2,max=12"`
	}

	SubmitFinal struct {
		QuestionID string `json:"question_id" validate:"required"`
		Choice     string `json:"choice" validate:"required,choice"`
		Rationale  string `json:"rationale" validate:"required,notblank"`
	}
)

func (g Group) HasMember(subject string) bool {
	for _, m := range g.Members {
		if m.UserID == subject {
			return true
		}
	}
	return false
}

func (g Group) IsLeader(subject string) bool {
	return subject != "" && g.LeaderID == subject
}

// FinalAnswer returns the final answer recorded for the question, if any.
func (g Group) FinalAnswer(questionID string) (FinalAnswer, bool) {
	for _, fa := range g.FinalAnswers {
		if fa.QuestionID == questionID {
			return fa, true
		}
	}
	return FinalAnswer{}, false
}

// InScope reports whether the caller may act within the group: guests only within the
// activity and group their session is bound to, everyone only when on the roster.
func (g Group) InScope(caller identity.Identity) bool {
	if tmp, ok := caller.(identity.Temporary); ok {
		if tmp.ActivityID != g.ActivityID || tmp.GroupID != g.ID {
			return false
		}
	}
	return g.HasMember(caller.Subject())
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	return validate.Struct(ng)
}

func (aa *AutoAssign) Validate(validate *validator.Validate) error {
	return validate.Struct(aa)
}

func (sf *SubmitFinal) Validate(validate *validator.Validate) error {
	sf.Choice = strings.ToUpper(core.CleanString(sf.Choice))
	sf.Rationale = core.CleanString(sf.Rationale)
	return validate.Struct(sf)
}
