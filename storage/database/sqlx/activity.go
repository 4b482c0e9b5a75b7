package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core/activity"
)

type (
	activityRepository struct {
		db *sqlx.DB
	}

	activityRow struct {
		ID                   string         `db:"id"`
		CourseID             string         `db:"course_id"`
		Title                string         `db:"title"`
		Description          string         `db:"description"`
		Status               string         `db:"status"`
		CurrentQuestionIndex int            `db:"current_question_index"`
		CreatedBy            string         `db:"created_by"`
		CreatedAt            time.Time      `db:"created_at"`
		UpdatedAt            time.Time      `db:"updated_at"`
		QuestionIDs          pq.StringArray `db:"question_ids"`
	}
)

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

// selectActivities aggregates the ordered question ids next to each activity.
const selectActivities = `
	SELECT a.*,
	       COALESCE(ARRAY(
	           SELECT aq.question_id::text FROM activity_questions aq
	           WHERE aq.activity_id = a.id ORDER BY aq.position
	       ), '{}') AS question_ids
	FROM activities a`

func NewActivityRepository(db *sqlx.DB) *activityRepository {
	return &activityRepository{db: db}
}

func (row activityRow) activity() activity.Activity {
	return activity.Activity{
		ID:                   row.ID,
		CourseID:             row.CourseID,
		Title:                row.Title,
		Description:          row.Description,
		Status:               activity.Status(row.Status),
		QuestionIDs:          []string(row.QuestionIDs),
		CurrentQuestionIndex: row.CurrentQuestionIndex,
		CreatedBy:            row.CreatedBy,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}

func (repo activityRepository) get(ctx context.Context, q sqlx.QueryerContext, id string) (activity.Activity, error) {
	var row activityRow
	if err := sqlx.GetContext(ctx, q, &row, selectActivities+` WHERE a.id = $1`, id); err != nil {
		return activity.Activity{}, trapNoRowsErr(err, activity.ErrNotFound, "selecting activity")
	}
	return row.activity(), nil
}

func (repo activityRepository) CreateActivity(ctx context.Context, act activity.Activity) (activity.Activity, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		const q = `
			INSERT INTO activities (id, course_id, title, description, status, current_question_index, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := tx.ExecContext(ctx, q,
			act.ID, act.CourseID, act.Title, act.Description, string(act.Status),
			act.CurrentQuestionIndex, act.CreatedBy, act.CreatedAt, act.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, "inserting activity")
		}
		for pos, qid := range act.QuestionIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO activity_questions (activity_id, question_id, position) VALUES ($1, $2, $3)`,
				act.ID, qid, pos,
			); err != nil {
				return errors.Wrap(err, "inserting activity question")
			}
		}
		return nil
	})
	if err != nil {
		return activity.Activity{}, err
	}
	return act, nil
}

func (repo activityRepository) GetActivity(ctx context.Context, id string) (activity.Activity, error) {
	if !validID(id) {
		return activity.Activity{}, activity.ErrNotFound
	}
	return repo.get(ctx, repo.db, id)
}

func (repo activityRepository) QueryActivities(ctx context.Context, courseID string) ([]activity.Activity, error) {
	if !validID(courseID) {
		return []activity.Activity{}, nil
	}
	var rows []activityRow
	if err := repo.db.SelectContext(ctx, &rows, selectActivities+` WHERE a.course_id = $1 ORDER BY a.created_at DESC`, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting activities")
	}
	acts := make([]activity.Activity, 0, len(rows))
	for _, row := range rows {
		acts = append(acts, row.activity())
	}
	return acts, nil
}

func (repo activityRepository) UpdateStatus(ctx context.Context, id string, from []activity.Status, to activity.Status, at time.Time) (activity.Activity, error) {
	if !validID(id) {
		return activity.Activity{}, activity.ErrNotFound
	}
	fromStr := make([]string, 0, len(from))
	for _, st := range from {
		fromStr = append(fromStr, string(st))
	}
	res, err := repo.db.ExecContext(ctx,
		`UPDATE activities SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`,
		string(to), at, id, pq.Array(fromStr),
	)
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "updating activity status")
	}
	none, err := noRowsAffected(res)
	if err != nil {
		return activity.Activity{}, err
	}
	if none {
		if _, err = repo.get(ctx, repo.db, id); err != nil {
			return activity.Activity{}, err
		}
		return activity.Activity{}, activity.ErrStale
	}
	return repo.get(ctx, repo.db, id)
}

func (repo activityRepository) UpdateQuestionIndex(ctx context.Context, id string, from, to int, at time.Time) (activity.Activity, error) {
	if !validID(id) {
		return activity.Activity{}, activity.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx,
		`UPDATE activities SET current_question_index = $1, updated_at = $2 WHERE id = $3 AND current_question_index = $4`,
		to, at, id, from,
	)
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "updating activity question index")
	}
	none, err := noRowsAffected(res)
	if err != nil {
		return activity.Activity{}, err
	}
	if none {
		if _, err = repo.get(ctx, repo.db, id); err != nil {
			return activity.Activity{}, err
		}
		return activity.Activity{}, activity.ErrStale
	}
	return repo.get(ctx, repo.db, id)
}

func (repo activityRepository) DeleteActivity(ctx context.Context, id string) error {
	if !validID(id) {
		return activity.ErrNotFound
	}
	// every dependent table cascades from activities
	res, err := repo.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	none, err := noRowsAffected(res)
	if err != nil {
		return err
	}
	if none {
		return activity.ErrNotFound
	}
	return nil
}
