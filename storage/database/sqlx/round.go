package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/baraza/core/round"
)

type (
	roundRepository struct {
		db *sqlx.DB
	}

	roundRow struct {
		ID          string         `db:"id"`
		ActivityID  string         `db:"activity_id"`
		QuestionID  string         `db:"question_id"`
		RoundNo     int            `db:"round_no"`
		Status      string         `db:"status"`
		Rules       types.JSONText `db:"rules"`
		StartedAt   time.Time      `db:"started_at"`
		CompletedAt null.Time      `db:"completed_at"`
	}
)

var _ round.Repository = (*roundRepository)(nil) // interface compliance check

func NewRoundRepository(db *sqlx.DB) *roundRepository {
	return &roundRepository{db: db}
}

func (row roundRow) round() (round.Round, error) {
	rnd := round.Round{
		ID:          row.ID,
		ActivityID:  row.ActivityID,
		QuestionID:  row.QuestionID,
		RoundNo:     row.RoundNo,
		Status:      round.Status(row.Status),
		StartedAt:   row.StartedAt,
		CompletedAt: row.CompletedAt.Ptr(),
	}
	if err := row.Rules.Unmarshal(&rnd.Rules); err != nil {
		return round.Round{}, errors.Wrap(err, "decoding round rules")
	}
	return rnd, nil
}

func roundsFromRows(rows []roundRow) ([]round.Round, error) {
	rounds := make([]round.Round, 0, len(rows))
	for _, row := range rows {
		rnd, err := row.round()
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, rnd)
	}
	return rounds, nil
}

// OpenRound serializes on the activity so the close-then-insert pair is never interleaved
// with another start or with CloseActivityRounds. The activity row is read FOR SHARE, so an
// activity that ends concurrently either waits for the insert or makes it fail.
// The partial unique index on open rounds backs it up.
func (repo roundRepository) OpenRound(ctx context.Context, rnd round.Round) (round.Round, []round.Round, error) {
	rules, err := json.Marshal(rnd.Rules)
	if err != nil {
		return round.Round{}, nil, errors.Wrap(err, "encoding round rules")
	}

	var closed []round.Round
	err = withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockActivity(ctx, tx, "rounds", rnd.ActivityID); err != nil {
			return err
		}
		var status string
		if err := tx.GetContext(ctx, &status, `SELECT status FROM activities WHERE id = $1 FOR SHARE`, rnd.ActivityID); err != nil {
			return trapNoRowsErr(err, round.ErrActivityNotRunning, "selecting activity status")
		}
		if status != "running" {
			return round.ErrActivityNotRunning
		}

		var rows []roundRow
		const closeQ = `
			UPDATE rounds SET status = 'closed', completed_at = $1
			WHERE activity_id = $2 AND question_id = $3 AND status = 'open'
			RETURNING *`
		if err := tx.SelectContext(ctx, &rows, closeQ, rnd.StartedAt, rnd.ActivityID, rnd.QuestionID); err != nil {
			return errors.Wrap(err, "closing open rounds")
		}
		var err error
		if closed, err = roundsFromRows(rows); err != nil {
			return err
		}

		const insertQ = `
			INSERT INTO rounds (id, activity_id, question_id, round_no, status, rules, started_at)
			VALUES ($1, $2, $3, $4, 'open', $5, $6)`
		if _, err = tx.ExecContext(ctx, insertQ, rnd.ID, rnd.ActivityID, rnd.QuestionID, rnd.RoundNo, types.JSONText(rules), rnd.StartedAt); err != nil {
			return errors.Wrap(err, "inserting round")
		}
		return nil
	})
	if err != nil {
		return round.Round{}, nil, err
	}
	rnd.Status = round.StatusOpen
	rnd.CompletedAt = nil
	return rnd, closed, nil
}

func (repo roundRepository) CloseRound(ctx context.Context, id string, at time.Time) (round.Round, error) {
	if !validID(id) {
		return round.Round{}, round.ErrNotFound
	}
	var row roundRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE rounds SET status = 'closed', completed_at = $1 WHERE id = $2 AND status = 'open' RETURNING *`,
		at, id,
	)
	if err != nil {
		if errors.Cause(err) != errNoRows {
			return round.Round{}, errors.Wrap(err, "closing round")
		}
		if _, err = repo.GetRound(ctx, id); err != nil {
			return round.Round{}, err
		}
		return round.Round{}, round.ErrAlreadyEnded
	}
	return row.round()
}

func (repo roundRepository) CloseActivityRounds(ctx context.Context, activityID string, at time.Time) ([]round.Round, error) {
	if !validID(activityID) {
		return nil, nil
	}
	var rows []roundRow
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockActivity(ctx, tx, "rounds", activityID); err != nil {
			return err
		}
		return errors.Wrap(tx.SelectContext(ctx, &rows,
			`UPDATE rounds SET status = 'closed', completed_at = $1 WHERE activity_id = $2 AND status = 'open' RETURNING *`,
			at, activityID,
		), "closing activity rounds")
	})
	if err != nil {
		return nil, err
	}
	return roundsFromRows(rows)
}

func (repo roundRepository) GetRound(ctx context.Context, id string) (round.Round, error) {
	if !validID(id) {
		return round.Round{}, round.ErrNotFound
	}
	var row roundRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM rounds WHERE id = $1`, id); err != nil {
		return round.Round{}, trapNoRowsErr(err, round.ErrNotFound, "selecting round")
	}
	return row.round()
}

func (repo roundRepository) GetOpenRound(ctx context.Context, activityID, questionID string) (round.Round, error) {
	if !validID(activityID) || !validID(questionID) {
		return round.Round{}, round.ErrNoOpenRound
	}
	var row roundRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM rounds WHERE activity_id = $1 AND question_id = $2 AND status = 'open'`,
		activityID, questionID,
	)
	if err != nil {
		return round.Round{}, trapNoRowsErr(err, round.ErrNoOpenRound, "selecting open round")
	}
	return row.round()
}

func (repo roundRepository) QueryRounds(ctx context.Context, activityID, questionID string) ([]round.Round, error) {
	if !validID(activityID) || (questionID != "" && !validID(questionID)) {
		return []round.Round{}, nil
	}
	var rows []roundRow
	var err error
	if questionID == "" {
		err = repo.db.SelectContext(ctx, &rows,
			`SELECT * FROM rounds WHERE activity_id = $1 ORDER BY round_no, started_at, id`, activityID)
	} else {
		err = repo.db.SelectContext(ctx, &rows,
			`SELECT * FROM rounds WHERE activity_id = $1 AND question_id = $2 ORDER BY round_no, started_at, id`,
			activityID, questionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "selecting rounds")
	}
	return roundsFromRows(rows)
}
