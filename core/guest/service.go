package guest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/identity"
)

var (
	NowFunc = time.Now // mockable

	ErrInvitationNotFound = core.NewNotFoundError("invitation")
	ErrSessionNotFound    = core.NewNotFoundError("session")
)

type (
	Repository interface {
		CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		GetInvitation(ctx context.Context, id string) (Invitation, error)
		GetInvitationByHash(ctx context.Context, tokenHash string) (Invitation, error)
		QueryInvitations(ctx context.Context, activityID string) ([]Invitation, error)
		DeactivateInvitation(ctx context.Context, id string) error
		// RedeemInvitation re-checks the invitation under lock. When the student already holds
		// a live session in the activity, its token hash is replaced by sess.TokenHash and the
		// use count is left alone; otherwise sess is inserted and the use count incremented.
		RedeemInvitation(ctx context.Context, invitationID string, sess Session, now time.Time) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		GetSessionByHash(ctx context.Context, tokenHash string) (Session, error)
		QuerySessions(ctx context.Context, activityID string) ([]Session, error)
		DeleteSession(ctx context.Context, id string) error
		DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
	}

	Service struct {
		repo       Repository
		activities *activity.Service
		hasher     hasher
		sessionTTL time.Duration
	}
)

func NewService(repo Repository, activities *activity.Service, secretKey string, sessionTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		activities: activities,
		hasher:     newHasher(secretKey),
		sessionTTL: sessionTTL,
	}
}

func (svc *Service) CreateInvitation(ctx context.Context, caller identity.Identity, activityID string, ni NewInvitation) (Invitation, error) {
	act, err := svc.activities.Authorize(ctx, caller, activityID)
	if err != nil {
		return Invitation{}, err
	}
	if act.Status == activity.StatusEnded {
		return Invitation{}, core.NewStateError("activity has ended")
	}
	staffID, _ := identity.StaffID(caller)

	token, err := makeToken(InvitationTokenPrefix)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "making invitation token")
	}
	now := NowFunc().UTC()
	inv := Invitation{
		ID:         uuid.New().String(),
		ActivityID: activityID,
		TokenHash:  svc.hasher.hash(token),
		CreatedBy:  staffID,
		MaxUses:    ni.MaxUses,
		IsActive:   true,
		CreatedAt:  now,
	}
	if ni.ExpiresInHours > 0 {
		exp := now.Add(time.Duration(ni.ExpiresInHours) * time.Hour)
		inv.ExpiresAt = &exp
	}
	if inv, err = svc.repo.CreateInvitation(ctx, inv); err != nil {
		return Invitation{}, errors.Wrap(err, "creating invitation")
	}
	inv.Token = token
	return inv, nil
}

func (svc *Service) ListInvitations(ctx context.Context, caller identity.Identity, activityID string) ([]Invitation, error) {
	if err := svc.activities.AuthorizeOwner(ctx, caller, activityID); err != nil {
		return nil, err
	}
	return svc.repo.QueryInvitations(ctx, activityID)
}

func (svc *Service) RevokeInvitation(ctx context.Context, caller identity.Identity, id string) error {
	inv, err := svc.repo.GetInvitation(ctx, id)
	if err != nil {
		if err == ErrInvitationNotFound {
			return core.ErrUnauthorized
		}
		return errors.Wrap(err, "getting invitation")
	}
	if err = svc.activities.AuthorizeOwner(ctx, caller, inv.ActivityID); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeactivateInvitation(ctx, id), "deactivating invitation")
}

// Join redeems an invitation token for a guest session.
// A student rejoining while their session is live gets the same session with a new token.
func (svc *Service) Join(ctx context.Context, jr JoinRequest) (Joined, error) {
	inv, err := svc.repo.GetInvitationByHash(ctx, svc.hasher.hash(jr.Token))
	if err != nil {
		if err == ErrInvitationNotFound {
			return Joined{}, err
		}
		return Joined{}, errors.Wrap(err, "getting invitation")
	}
	now := NowFunc().UTC()
	if err = inv.Redeemable(now); err != nil {
		return Joined{}, err
	}
	act, err := svc.activities.Get(ctx, inv.ActivityID)
	if err != nil {
		return Joined{}, errors.Wrap(err, "getting activity")
	}
	if act.Status == activity.StatusEnded {
		return Joined{}, core.NewStateError("activity has ended")
	}

	token, err := makeToken(SessionTokenPrefix)
	if err != nil {
		return Joined{}, errors.Wrap(err, "making session token")
	}
	sess, err := svc.repo.RedeemInvitation(ctx, inv.ID, Session{
		ID:            uuid.New().String(),
		ActivityID:    inv.ActivityID,
		InvitationID:  inv.ID,
		StudentNumber: jr.StudentNumber,
		DisplayName:   jr.DisplayName,
		TokenHash:     svc.hasher.hash(token),
		ExpiresAt:     now.Add(svc.sessionTTL),
		CreatedAt:     now,
	}, now)
	if err != nil {
		if core.IsStateError(err) {
			return Joined{}, err
		}
		return Joined{}, errors.Wrap(err, "redeeming invitation")
	}
	return Joined{Session: sess, Token: token}, nil
}

// Resolve returns the temporary identity behind a session token.
// Unknown and expired sessions are unauthenticated.
func (svc *Service) Resolve(ctx context.Context, token string) (identity.Identity, error) {
	if !IsSessionToken(token) {
		return nil, core.ErrUnauthenticated
	}
	sess, err := svc.repo.GetSessionByHash(ctx, svc.hasher.hash(token))
	if err != nil {
		if err == ErrSessionNotFound {
			return nil, core.ErrUnauthenticated
		}
		return nil, errors.Wrap(err, "getting session")
	}
	if sess.Expired(NowFunc()) {
		return nil, core.ErrUnauthenticated
	}
	return sess.Identity(), nil
}

func (svc *Service) ListSessions(ctx context.Context, caller identity.Identity, activityID string) ([]Session, error) {
	if err := svc.activities.AuthorizeOwner(ctx, caller, activityID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySessions(ctx, activityID)
}

func (svc *Service) RevokeSession(ctx context.Context, caller identity.Identity, id string) error {
	sess, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		if err == ErrSessionNotFound {
			return core.ErrUnauthorized
		}
		return errors.Wrap(err, "getting session")
	}
	if err = svc.activities.AuthorizeOwner(ctx, caller, sess.ActivityID); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteSession(ctx, id), "deleting session")
}

// PurgeExpired deletes expired sessions and returns how many were removed.
func (svc *Service) PurgeExpired(ctx context.Context) (int, error) {
	n, err := svc.repo.DeleteExpiredSessions(ctx, NowFunc().UTC())
	return n, errors.Wrap(err, "deleting expired sessions")
}
