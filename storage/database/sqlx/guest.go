package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/baraza/core/guest"
)

type (
	guestRepository struct {
		db *sqlx.DB
	}

	invitationRow struct {
		ID         string    `db:"id"`
		ActivityID string    `db:"activity_id"`
		TokenHash  string    `db:"token_hash"`
		CreatedBy  string    `db:"created_by"`
		ExpiresAt  null.Time `db:"expires_at"`
		MaxUses    int       `db:"max_uses"`
		UseCount   int       `db:"use_count"`
		IsActive   bool      `db:"is_active"`
		CreatedAt  time.Time `db:"created_at"`
	}

	sessionRow struct {
		ID            string      `db:"id"`
		ActivityID    string      `db:"activity_id"`
		InvitationID  null.String `db:"invitation_id"`
		GroupID       null.String `db:"group_id"`
		StudentNumber string      `db:"student_number"`
		DisplayName   string      `db:"display_name"`
		TokenHash     string      `db:"token_hash"`
		ExpiresAt     time.Time   `db:"expires_at"`
		CreatedAt     time.Time   `db:"created_at"`
	}
)

var _ guest.Repository = (*guestRepository)(nil) // interface compliance check

func NewGuestRepository(db *sqlx.DB) *guestRepository {
	return &guestRepository{db: db}
}

func (row invitationRow) invitation() guest.Invitation {
	return guest.Invitation{
		ID:         row.ID,
		ActivityID: row.ActivityID,
		TokenHash:  row.TokenHash,
		CreatedBy:  row.CreatedBy,
		ExpiresAt:  row.ExpiresAt.Ptr(),
		MaxUses:    row.MaxUses,
		UseCount:   row.UseCount,
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt,
	}
}

func (row sessionRow) session() guest.Session {
	return guest.Session{
		ID:            row.ID,
		ActivityID:    row.ActivityID,
		InvitationID:  row.InvitationID.String,
		GroupID:       row.GroupID.String,
		StudentNumber: row.StudentNumber,
		DisplayName:   row.DisplayName,
		TokenHash:     row.TokenHash,
		ExpiresAt:     row.ExpiresAt,
		CreatedAt:     row.CreatedAt,
	}
}

func (repo guestRepository) CreateInvitation(ctx context.Context, inv guest.Invitation) (guest.Invitation, error) {
	const q = `
		INSERT INTO activity_invitations (id, activity_id, token_hash, created_by, expires_at, max_uses, use_count, is_active, created_at)
		VALUES (:id, :activity_id, :token_hash, :created_by, :expires_at, :max_uses, :use_count, :is_active, :created_at)`
	row := invitationRow{
		ID:         inv.ID,
		ActivityID: inv.ActivityID,
		TokenHash:  inv.TokenHash,
		CreatedBy:  inv.CreatedBy,
		ExpiresAt:  null.TimeFromPtr(inv.ExpiresAt),
		MaxUses:    inv.MaxUses,
		UseCount:   inv.UseCount,
		IsActive:   inv.IsActive,
		CreatedAt:  inv.CreatedAt,
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return guest.Invitation{}, errors.Wrap(err, "inserting invitation")
	}
	return inv, nil
}

func (repo guestRepository) GetInvitation(ctx context.Context, id string) (guest.Invitation, error) {
	if !validID(id) {
		return guest.Invitation{}, guest.ErrInvitationNotFound
	}
	var row invitationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM activity_invitations WHERE id = $1`, id); err != nil {
		return guest.Invitation{}, trapNoRowsErr(err, guest.ErrInvitationNotFound, "selecting invitation")
	}
	return row.invitation(), nil
}

func (repo guestRepository) GetInvitationByHash(ctx context.Context, tokenHash string) (guest.Invitation, error) {
	var row invitationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM activity_invitations WHERE token_hash = $1`, tokenHash); err != nil {
		return guest.Invitation{}, trapNoRowsErr(err, guest.ErrInvitationNotFound, "selecting invitation")
	}
	return row.invitation(), nil
}

func (repo guestRepository) QueryInvitations(ctx context.Context, activityID string) ([]guest.Invitation, error) {
	if !validID(activityID) {
		return []guest.Invitation{}, nil
	}
	var rows []invitationRow
	if err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM activity_invitations WHERE activity_id = $1 ORDER BY created_at DESC`, activityID,
	); err != nil {
		return nil, errors.Wrap(err, "selecting invitations")
	}
	invs := make([]guest.Invitation, 0, len(rows))
	for _, row := range rows {
		invs = append(invs, row.invitation())
	}
	return invs, nil
}

func (repo guestRepository) DeactivateInvitation(ctx context.Context, id string) error {
	if !validID(id) {
		return guest.ErrInvitationNotFound
	}
	res, err := repo.db.ExecContext(ctx, `UPDATE activity_invitations SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deactivating invitation")
	}
	none, err := noRowsAffected(res)
	if err != nil {
		return err
	}
	if none {
		return guest.ErrInvitationNotFound
	}
	return nil
}

func (repo guestRepository) RedeemInvitation(ctx context.Context, invitationID string, sess guest.Session, now time.Time) (guest.Session, error) {
	var redeemed guest.Session
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var inv invitationRow
		if err := tx.GetContext(ctx, &inv, `SELECT * FROM activity_invitations WHERE id = $1 FOR UPDATE`, invitationID); err != nil {
			return trapNoRowsErr(err, guest.ErrInvitationNotFound, "locking invitation")
		}
		if err := inv.invitation().Redeemable(now); err != nil {
			return err
		}
		if err := lockActivity(ctx, tx, "sessions", sess.ActivityID); err != nil {
			return err
		}

		var row sessionRow
		const rotateQ = `
			UPDATE student_sessions SET token_hash = $1, display_name = $2
			WHERE id = (
				SELECT id FROM student_sessions
				WHERE activity_id = $3 AND student_number = $4 AND expires_at > $5
				ORDER BY created_at DESC LIMIT 1
			)
			RETURNING *`
		err := tx.GetContext(ctx, &row, rotateQ, sess.TokenHash, sess.DisplayName, sess.ActivityID, sess.StudentNumber, now)
		if err == nil {
			redeemed = row.session()
			return nil
		}
		if errors.Cause(err) != errNoRows {
			return errors.Wrap(err, "rotating session")
		}

		const insertQ = `
			INSERT INTO student_sessions (id, activity_id, invitation_id, student_number, display_name, token_hash, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		if _, err = tx.ExecContext(ctx, insertQ,
			sess.ID, sess.ActivityID, invitationID, sess.StudentNumber, sess.DisplayName, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "inserting session")
		}
		if _, err = tx.ExecContext(ctx, `UPDATE activity_invitations SET use_count = use_count + 1 WHERE id = $1`, invitationID); err != nil {
			return errors.Wrap(err, "counting invitation use")
		}
		redeemed = sess
		return nil
	})
	if err != nil {
		return guest.Session{}, err
	}
	return redeemed, nil
}

func (repo guestRepository) GetSession(ctx context.Context, id string) (guest.Session, error) {
	if !validID(id) {
		return guest.Session{}, guest.ErrSessionNotFound
	}
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM student_sessions WHERE id = $1`, id); err != nil {
		return guest.Session{}, trapNoRowsErr(err, guest.ErrSessionNotFound, "selecting session")
	}
	return row.session(), nil
}

func (repo guestRepository) GetSessionByHash(ctx context.Context, tokenHash string) (guest.Session, error) {
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM student_sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return guest.Session{}, trapNoRowsErr(err, guest.ErrSessionNotFound, "selecting session")
	}
	return row.session(), nil
}

func (repo guestRepository) QuerySessions(ctx context.Context, activityID string) ([]guest.Session, error) {
	if !validID(activityID) {
		return []guest.Session{}, nil
	}
	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM student_sessions WHERE activity_id = $1 ORDER BY created_at`, activityID,
	); err != nil {
		return nil, errors.Wrap(err, "selecting sessions")
	}
	sessions := make([]guest.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.session())
	}
	return sessions, nil
}

func (repo guestRepository) DeleteSession(ctx context.Context, id string) error {
	if !validID(id) {
		return guest.ErrSessionNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM student_sessions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	none, err := noRowsAffected(res)
	if err != nil {
		return err
	}
	if none {
		return guest.ErrSessionNotFound
	}
	return nil
}

func (repo guestRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM student_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired sessions")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted sessions")
}
