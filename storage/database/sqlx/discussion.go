package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/round"
)

type (
	discussionRepository struct {
		db *sqlx.DB
	}

	messageRow struct {
		ID         string         `db:"id"`
		ActivityID string         `db:"activity_id"`
		QuestionID string         `db:"question_id"`
		RoundID    string         `db:"round_id"`
		GroupID    string         `db:"group_id"`
		AuthorID   string         `db:"author_id"`
		AuthorName string         `db:"author_name"`
		Content    string         `db:"content"`
		ReplyTo    null.String    `db:"reply_to"`
		Meta       types.JSONText `db:"meta"`
		CreatedAt  time.Time      `db:"created_at"`
		Seq        int64          `db:"seq"`
	}

	submissionRow struct {
		ID         string    `db:"id"`
		ActivityID string    `db:"activity_id"`
		QuestionID string    `db:"question_id"`
		GroupID    string    `db:"group_id"`
		UserID     string    `db:"user_id"`
		Type       string    `db:"type"`
		Choice     string    `db:"choice"`
		Rationale  string    `db:"rationale"`
		CreatedAt  time.Time `db:"created_at"`
		UpdatedAt  time.Time `db:"updated_at"`
	}
)

var _ discussion.Repository = (*discussionRepository)(nil) // interface compliance check

func NewDiscussionRepository(db *sqlx.DB) *discussionRepository {
	return &discussionRepository{db: db}
}

func (row messageRow) message() (discussion.Message, error) {
	msg := discussion.Message{
		ID:         row.ID,
		ActivityID: row.ActivityID,
		QuestionID: row.QuestionID,
		RoundID:    row.RoundID,
		GroupID:    row.GroupID,
		AuthorID:   row.AuthorID,
		AuthorName: row.AuthorName,
		Content:    row.Content,
		ReplyTo:    row.ReplyTo.String,
		CreatedAt:  row.CreatedAt,
	}
	if err := row.Meta.Unmarshal(&msg.Diagnostics); err != nil {
		return discussion.Message{}, errors.Wrap(err, "decoding message meta")
	}
	return msg, nil
}

func (row submissionRow) submission() discussion.Submission {
	return discussion.Submission{
		ID:         row.ID,
		ActivityID: row.ActivityID,
		QuestionID: row.QuestionID,
		GroupID:    row.GroupID,
		UserID:     row.UserID,
		Type:       discussion.SubmissionType(row.Type),
		Choice:     course.ChoiceKey(row.Choice),
		Rationale:  row.Rationale,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

// CreateMessage reads the round FOR SHARE inside the insert, so a concurrent close either
// waits for the insert to commit or makes it insert nothing.
func (repo discussionRepository) CreateMessage(ctx context.Context, msg discussion.Message) (discussion.Message, error) {
	meta, err := json.Marshal(msg.Diagnostics)
	if err != nil {
		return discussion.Message{}, errors.Wrap(err, "encoding message meta")
	}
	const q = `
		WITH live AS (
			SELECT id FROM rounds WHERE id = $4 AND status = 'open' FOR SHARE
		)
		INSERT INTO messages (id, activity_id, question_id, round_id, group_id, author_id, author_name, content, reply_to, meta, created_at)
		SELECT $1, $2, $3, live.id, $5, $6, $7, $8, $9, $10, $11 FROM live`
	res, err := repo.db.ExecContext(ctx, q,
		msg.ID, msg.ActivityID, msg.QuestionID, msg.RoundID, msg.GroupID, msg.AuthorID, msg.AuthorName,
		msg.Content, null.NewString(msg.ReplyTo, msg.ReplyTo != ""), types.JSONText(meta), msg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return discussion.Message{}, discussion.ErrDuplicate
		}
		return discussion.Message{}, errors.Wrap(err, "inserting message")
	}
	none, err := noRowsAffected(res)
	if err != nil {
		return discussion.Message{}, err
	}
	if none {
		return discussion.Message{}, round.ErrRoundClosed
	}
	return msg, nil
}

func (repo discussionRepository) GetMessage(ctx context.Context, id string) (discussion.Message, error) {
	if !validID(id) {
		return discussion.Message{}, discussion.ErrNotFound
	}
	var row messageRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM messages WHERE id = $1`, id); err != nil {
		return discussion.Message{}, trapNoRowsErr(err, discussion.ErrNotFound, "selecting message")
	}
	return row.message()
}

func (repo discussionRepository) GetAuthorMessage(ctx context.Context, roundID, authorID string) (discussion.Message, error) {
	if !validID(roundID) {
		return discussion.Message{}, discussion.ErrNotFound
	}
	var row messageRow
	if err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM messages WHERE round_id = $1 AND author_id = $2`, roundID, authorID,
	); err != nil {
		return discussion.Message{}, trapNoRowsErr(err, discussion.ErrNotFound, "selecting message")
	}
	return row.message()
}

func (repo discussionRepository) QueryMessages(ctx context.Context, groupID, roundID string) ([]discussion.Message, error) {
	if !validID(groupID) || !validID(roundID) {
		return []discussion.Message{}, nil
	}
	var rows []messageRow
	if err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM messages WHERE group_id = $1 AND round_id = $2 ORDER BY created_at, seq`, groupID, roundID,
	); err != nil {
		return nil, errors.Wrap(err, "selecting messages")
	}
	msgs := make([]discussion.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := row.message()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (repo discussionRepository) UpsertChoice(ctx context.Context, sub discussion.Submission) (discussion.Submission, error) {
	if !validID(sub.ActivityID) || !validID(sub.QuestionID) || !validID(sub.GroupID) {
		return discussion.Submission{}, discussion.ErrNoOpenRound
	}
	const q = `
		WITH live AS (
			SELECT id FROM rounds WHERE activity_id = $2 AND question_id = $3 AND status = 'open' FOR SHARE
		)
		INSERT INTO submissions (id, activity_id, question_id, group_id, user_id, type, choice, rationale, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10 FROM live
		ON CONFLICT (activity_id, question_id, group_id, user_id, type) DO UPDATE
		SET choice = EXCLUDED.choice, rationale = EXCLUDED.rationale, updated_at = EXCLUDED.updated_at
		RETURNING *`
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, q,
		sub.ID, sub.ActivityID, sub.QuestionID, sub.GroupID, sub.UserID,
		string(sub.Type), string(sub.Choice), sub.Rationale, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return discussion.Submission{}, trapNoRowsErr(err, discussion.ErrNoOpenRound, "upserting choice")
	}
	return row.submission(), nil
}

func (repo discussionRepository) QuerySubmissions(ctx context.Context, groupID, questionID string) ([]discussion.Submission, error) {
	if !validID(groupID) || !validID(questionID) {
		return []discussion.Submission{}, nil
	}
	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM submissions WHERE group_id = $1 AND question_id = $2 ORDER BY type DESC, created_at`, groupID, questionID,
	); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]discussion.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.submission())
	}
	return subs, nil
}
