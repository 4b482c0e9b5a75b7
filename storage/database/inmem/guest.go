package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/baraza/core/guest"
)

type guestRepository struct {
	db *DB
}

var _ guest.Repository = (*guestRepository)(nil) // interface compliance check

func NewGuestRepository(db *DB) *guestRepository {
	return &guestRepository{db: db}
}

func cloneInvitation(inv guest.Invitation) guest.Invitation {
	if inv.ExpiresAt != nil {
		t := *inv.ExpiresAt
		inv.ExpiresAt = &t
	}
	return inv
}

func (repo *guestRepository) CreateInvitation(_ context.Context, inv guest.Invitation) (guest.Invitation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	inv.Token = ""
	repo.db.invitations[inv.ID] = cloneInvitation(inv)
	return inv, nil
}

func (repo *guestRepository) GetInvitation(_ context.Context, id string) (guest.Invitation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inv, ok := repo.db.invitations[id]; ok {
		return cloneInvitation(inv), nil
	}
	return guest.Invitation{}, guest.ErrInvitationNotFound
}

func (repo *guestRepository) GetInvitationByHash(_ context.Context, tokenHash string) (guest.Invitation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inv := range repo.db.invitations {
		if inv.TokenHash == tokenHash {
			return cloneInvitation(inv), nil
		}
	}
	return guest.Invitation{}, guest.ErrInvitationNotFound
}

func (repo *guestRepository) QueryInvitations(_ context.Context, activityID string) ([]guest.Invitation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	invs := make([]guest.Invitation, 0)
	for _, inv := range repo.db.invitations {
		if inv.ActivityID == activityID {
			invs = append(invs, cloneInvitation(inv))
		}
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].CreatedAt.After(invs[j].CreatedAt) })
	return invs, nil
}

func (repo *guestRepository) DeactivateInvitation(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	inv, ok := repo.db.invitations[id]
	if !ok {
		return guest.ErrInvitationNotFound
	}
	inv.IsActive = false
	repo.db.invitations[id] = inv
	return nil
}

func (repo *guestRepository) RedeemInvitation(_ context.Context, invitationID string, sess guest.Session, now time.Time) (guest.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	inv, ok := repo.db.invitations[invitationID]
	if !ok {
		return guest.Session{}, guest.ErrInvitationNotFound
	}
	if err := inv.Redeemable(now); err != nil {
		return guest.Session{}, err
	}

	for id, existing := range repo.db.sessions {
		if existing.ActivityID == sess.ActivityID && existing.StudentNumber == sess.StudentNumber && !existing.Expired(now) {
			existing.TokenHash = sess.TokenHash
			existing.DisplayName = sess.DisplayName
			repo.db.sessions[id] = existing
			return existing, nil
		}
	}

	inv.UseCount++
	repo.db.invitations[invitationID] = inv
	repo.db.sessions[sess.ID] = sess
	return sess, nil
}

func (repo *guestRepository) GetSession(_ context.Context, id string) (guest.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.sessions[id]; ok {
		return sess, nil
	}
	return guest.Session{}, guest.ErrSessionNotFound
}

func (repo *guestRepository) GetSessionByHash(_ context.Context, tokenHash string) (guest.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sess := range repo.db.sessions {
		if sess.TokenHash == tokenHash {
			return sess, nil
		}
	}
	return guest.Session{}, guest.ErrSessionNotFound
}

func (repo *guestRepository) QuerySessions(_ context.Context, activityID string) ([]guest.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]guest.Session, 0)
	for _, sess := range repo.db.sessions {
		if sess.ActivityID == activityID {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.Before(sessions[j].CreatedAt) })
	return sessions, nil
}

func (repo *guestRepository) DeleteSession(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.sessions[id]; !ok {
		return guest.ErrSessionNotFound
	}
	delete(repo.db.sessions, id)
	return nil
}

func (repo *guestRepository) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for id, sess := range repo.db.sessions {
		if sess.Expired(now) {
			delete(repo.db.sessions, id)
			n++
		}
	}
	return n, nil
}
