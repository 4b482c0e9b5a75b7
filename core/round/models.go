package round

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Rules constrain the messages of a round. They are fixed when the round opens.
type Rules struct {
	MinLen             int  `json:"min_len"`
	RequireReplyToPeer bool `json:"require_reply_to_peer,omitempty"`
}

// DefaultRules are the rules of a round by its number:
// rounds 1 and 2 ask for 20 characters, later rounds 15 characters and a reply to a peer from round 3.
func DefaultRules(roundNo int) Rules {
	if roundNo <= 2 {
		return Rules{MinLen: 20}
	}
	return Rules{MinLen: 15, RequireReplyToPeer: roundNo == 3}
}

// MinLenOrDefault returns the minimum message length, 20 when unset.
func (r Rules) MinLenOrDefault() int {
	if r.MinLen <= 0 {
		return 20
	}
	return r.MinLen
}

type (
	Round struct {
		ID          string     `json:"id"`
		ActivityID  string     `json:"activity_id"`
		QuestionID  string     `json:"question_id"`
		RoundNo     int        `json:"round_no"`
		Status      Status     `json:"status"`
		Rules       Rules      `json:"rules"`
		StartedAt   time.Time  `json:"started_at"`
		CompletedAt *time.Time `json:"completed_at,omitempty"`
	}

	NewRound struct {
		QuestionID string `json:"question_id" validate:"required"`
		RoundNo    int    `json:"round_no" validate:"required,min=1,max=10"`
	}
)

func (r Round) IsOpen() bool {
	return r.Status == StatusOpen
}

// Close marks the round closed at t.
func (r *Round) Close(t time.Time) {
	r.Status = StatusClosed
	r.CompletedAt = &t
}

func (nr *NewRound) Validate(validate *validator.Validate) error {
	return validate.Struct(nr)
}
