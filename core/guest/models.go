package guest

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/identity"
)

var (
	ErrInvitationRevoked = core.NewStateError("invitation has been revoked")
	ErrInvitationExpired = core.NewStateError("invitation has expired")
	ErrInvitationUsedUp  = core.NewStateError("invitation has reached its maximum number of uses")
)

type (
	// Invitation admits guests to one activity. Token is only set when the invitation is created.
	Invitation struct {
		ID         string     `json:"id"`
		ActivityID string     `json:"activity_id"`
		Token      string     `json:"token,omitempty"`
		TokenHash  string     `json:"-"`
		CreatedBy  string     `json:"created_by"`
		ExpiresAt  *time.Time `json:"expires_at,omitempty"`
		MaxUses    int        `json:"max_uses,omitempty"` // 0: unlimited
		UseCount   int        `json:"use_count"`
		IsActive   bool       `json:"is_active"`
		CreatedAt  time.Time  `json:"created_at"`
	}

	// Session is a guest's temporary identity within an activity.
	Session struct {
		ID            string    `json:"id"`
		ActivityID    string    `json:"activity_id"`
		InvitationID  string    `json:"invitation_id"`
		GroupID       string    `json:"group_id,omitempty"`
		StudentNumber string    `json:"student_number"`
		DisplayName   string    `json:"display_name"`
		TokenHash     string    `json:"-"`
		ExpiresAt     time.Time `json:"expires_at"`
		CreatedAt     time.Time `json:"created_at"`
	}

	NewInvitation struct {
		ExpiresInHours int `json:"expires_in_hours" validate:"min=0,max=720"`
		MaxUses        int `json:"max_uses" validate:"min=0"`
	}

	JoinRequest struct {
		Token         string `json:"token" validate:"required,startswith=act_inv_"`
		StudentNumber string `json:"student_number" validate:"required,notblank,max=50"`
		DisplayName   string `json:"display_name" validate:"required,notblank,max=100"`
	}

	// Joined is the outcome of a join: the session and its bearer token.
	Joined struct {
		Session Session `json:"session"`
		Token   string  `json:"token"`
	}
)

// Redeemable fails with a state error when the invitation cannot admit one more guest at `now`.
func (inv Invitation) Redeemable(now time.Time) error {
	if !inv.IsActive {
		return ErrInvitationRevoked
	}
	if inv.ExpiresAt != nil && !now.Before(*inv.ExpiresAt) {
		return ErrInvitationExpired
	}
	if inv.MaxUses > 0 && inv.UseCount >= inv.MaxUses {
		return ErrInvitationUsedUp
	}
	return nil
}

func (sess Session) Expired(now time.Time) bool {
	return !now.Before(sess.ExpiresAt)
}

func (sess Session) Identity() identity.Temporary {
	return identity.Temporary{
		SessionID:     sess.ID,
		DisplayName:   sess.DisplayName,
		StudentNumber: sess.StudentNumber,
		ActivityID:    sess.ActivityID,
		GroupID:       sess.GroupID,
		ExpiresAt:     sess.ExpiresAt,
	}
}

func (ni *NewInvitation) Validate(validate *validator.Validate) error {
	return validate.Struct(ni)
}

func (jr *JoinRequest) Validate(validate *validator.Validate) error {
	jr.Token = core.CleanString(jr.Token)
	jr.StudentNumber = core.CleanString(jr.StudentNumber)
	jr.DisplayName = core.CleanString(jr.DisplayName)
	return validate.Struct(jr)
}
