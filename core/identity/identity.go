package identity

import (
	"context"
	"time"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleTA      Role = "ta"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

var Roles = []Role{RoleTeacher, RoleTA, RoleStudent, RoleAdmin}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Identity is the resolved caller of an operation.
// It is either a Permanent account or a Temporary guest session; switch on the concrete type.
type Identity interface {
	// Subject identifies the author of the caller's messages and submissions.
	Subject() string
	IsStudent() bool
	isIdentity()
}

// Permanent is an account held by the identity provider.
type Permanent struct {
	UserID        string `json:"user_id"`
	Role          Role   `json:"role"`
	DisplayName   string `json:"display_name"`
	StudentNumber string `json:"student_number,omitempty"`
}

// Temporary is a guest admitted to one activity through an invitation.
// GroupID stays empty until the guest is assigned to a group.
type Temporary struct {
	SessionID     string    `json:"session_id"`
	DisplayName   string    `json:"display_name"`
	StudentNumber string    `json:"student_number"`
	ActivityID    string    `json:"activity_id"`
	GroupID       string    `json:"group_id,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

var (
	_ Identity = Permanent{} // interface compliance check
	_ Identity = Temporary{} // interface compliance check
)

func (p Permanent) Subject() string { return p.UserID }
func (p Permanent) IsStudent() bool { return p.Role == RoleStudent }
func (Permanent) isIdentity()       {}

// IsStaff reports whether the account may author courses and activities.
func (p Permanent) IsStaff() bool {
	return p.Role == RoleTeacher || p.Role == RoleTA
}

func (t Temporary) Subject() string { return t.SessionID }
func (Temporary) IsStudent() bool   { return true }
func (Temporary) isIdentity()       {}

// Resolver turns a presented credential into an Identity.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (Identity, error)
}

// StaffID returns the account id of a teacher or TA, and false for anyone else.
func StaffID(caller Identity) (string, bool) {
	if p, ok := caller.(Permanent); ok && p.IsStaff() {
		return p.UserID, true
	}
	return "", false
}
