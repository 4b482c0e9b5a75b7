package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/group"
	"github.com/trezcool/baraza/core/guest"
)

type (
	groupRepository struct {
		db *sqlx.DB
	}

	groupRow struct {
		ID         string    `db:"id"`
		ActivityID string    `db:"activity_id"`
		Name       string    `db:"name"`
		LeaderID   string    `db:"leader_id"`
		CreatedAt  time.Time `db:"created_at"`
	}

	memberRow struct {
		GroupID     string `db:"group_id"`
		UserID      string `db:"user_id"`
		DisplayName string `db:"display_name"`
		SeatNo      int    `db:"seat_no"`
	}

	answerRow struct {
		GroupID     string    `db:"group_id"`
		QuestionID  string    `db:"question_id"`
		Choice      string    `db:"choice"`
		Rationale   string    `db:"rationale"`
		SubmittedBy string    `db:"submitted_by"`
		SubmittedAt time.Time `db:"submitted_at"`
	}
)

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) *groupRepository {
	return &groupRepository{db: db}
}

// load fills members and final answers of the given group rows.
func (repo groupRepository) load(ctx context.Context, q sqlx.QueryerContext, rows []groupRow) ([]group.Group, error) {
	groups := make([]group.Group, 0, len(rows))
	if len(rows) == 0 {
		return groups, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var members []memberRow
	if err := sqlx.SelectContext(ctx, q, &members,
		`SELECT * FROM group_members WHERE group_id = ANY($1) ORDER BY group_id, seat_no`, pq.Array(ids),
	); err != nil {
		return nil, errors.Wrap(err, "selecting group members")
	}
	var answers []answerRow
	if err := sqlx.SelectContext(ctx, q, &answers,
		`SELECT * FROM group_answers WHERE group_id = ANY($1) ORDER BY submitted_at`, pq.Array(ids),
	); err != nil {
		return nil, errors.Wrap(err, "selecting group answers")
	}

	membersOf := make(map[string][]group.Member, len(rows))
	for _, m := range members {
		membersOf[m.GroupID] = append(membersOf[m.GroupID], group.Member{UserID: m.UserID, DisplayName: m.DisplayName, SeatNo: m.SeatNo})
	}
	answersOf := make(map[string][]group.FinalAnswer, len(rows))
	for _, a := range answers {
		answersOf[a.GroupID] = append(answersOf[a.GroupID], group.FinalAnswer{
			QuestionID:  a.QuestionID,
			Choice:      course.ChoiceKey(a.Choice),
			Rationale:   a.Rationale,
			SubmittedBy: a.SubmittedBy,
			SubmittedAt: a.SubmittedAt,
		})
	}
	for _, row := range rows {
		groups = append(groups, group.Group{
			ID:           row.ID,
			ActivityID:   row.ActivityID,
			Name:         row.Name,
			LeaderID:     row.LeaderID,
			Members:      membersOf[row.ID],
			FinalAnswers: answersOf[row.ID],
			CreatedAt:    row.CreatedAt,
		})
	}
	return groups, nil
}

func insertGroup(ctx context.Context, tx *sqlx.Tx, grp group.Group) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO groups (id, activity_id, name, leader_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		grp.ID, grp.ActivityID, grp.Name, grp.LeaderID, grp.CreatedAt,
	); err != nil {
		return errors.Wrap(err, "inserting group")
	}
	for _, m := range grp.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, display_name, seat_no) VALUES ($1, $2, $3, $4)`,
			grp.ID, m.UserID, m.DisplayName, m.SeatNo,
		); err != nil {
			return errors.Wrap(err, "inserting group member")
		}
	}
	return nil
}

func (repo groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockActivity(ctx, tx, "groups", grp.ActivityID); err != nil {
			return err
		}

		userIDs := make([]string, 0, len(grp.Members))
		for _, m := range grp.Members {
			userIDs = append(userIDs, m.UserID)
		}
		var taken []groupRow
		if err := tx.SelectContext(ctx, &taken, `
			SELECT g.* FROM groups g
			WHERE g.activity_id = $1
			  AND EXISTS (SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = ANY($2))
			ORDER BY g.created_at
			LIMIT 1`, grp.ActivityID, pq.Array(userIDs),
		); err != nil {
			return errors.Wrap(err, "selecting seated members")
		}
		if len(taken) > 0 {
			existing, err := repo.load(ctx, tx, taken)
			if err != nil {
				return err
			}
			return &group.SeatTakenError{Group: existing[0]}
		}
		return insertGroup(ctx, tx, grp)
	})
	if err != nil {
		return group.Group{}, err
	}
	return grp, nil
}

func (repo groupRepository) IsSeated(ctx context.Context, activityID, userID string) (bool, error) {
	if !validID(activityID) {
		return false, nil
	}
	var seated bool
	err := repo.db.GetContext(ctx, &seated, `
		SELECT EXISTS (
			SELECT 1 FROM group_members gm JOIN groups g ON g.id = gm.group_id
			WHERE g.activity_id = $1 AND gm.user_id = $2
		)`, activityID, userID,
	)
	return seated, errors.Wrap(err, "checking seat")
}

func (repo groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	if !validID(id) {
		return group.Group{}, group.ErrNotFound
	}
	var row groupRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM groups WHERE id = $1`, id); err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "selecting group")
	}
	groups, err := repo.load(ctx, repo.db, []groupRow{row})
	if err != nil {
		return group.Group{}, err
	}
	return groups[0], nil
}

func (repo groupRepository) QueryGroups(ctx context.Context, activityID string) ([]group.Group, error) {
	if !validID(activityID) {
		return []group.Group{}, nil
	}
	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM groups WHERE activity_id = $1 ORDER BY created_at, name`, activityID,
	); err != nil {
		return nil, errors.Wrap(err, "selecting groups")
	}
	return repo.load(ctx, repo.db, rows)
}

// SetFinalAnswer relies on the (group_id, question_id) primary key: a second answer inserts nothing.
func (repo groupRepository) SetFinalAnswer(ctx context.Context, groupID string, fa group.FinalAnswer) (group.Group, error) {
	if !validID(groupID) {
		return group.Group{}, group.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var activityID string
		if err := tx.GetContext(ctx, &activityID, `SELECT activity_id FROM groups WHERE id = $1`, groupID); err != nil {
			return trapNoRowsErr(err, group.ErrNotFound, "selecting group")
		}

		const answerQ = `
			INSERT INTO group_answers (group_id, question_id, choice, rationale, submitted_by, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (group_id, question_id) DO NOTHING`
		res, err := tx.ExecContext(ctx, answerQ, groupID, fa.QuestionID, string(fa.Choice), fa.Rationale, fa.SubmittedBy, fa.SubmittedAt)
		if err != nil {
			return errors.Wrap(err, "inserting final answer")
		}
		none, err := noRowsAffected(res)
		if err != nil {
			return err
		}
		if none {
			return group.ErrFinalExists
		}

		const submissionQ = `
			INSERT INTO submissions (id, activity_id, question_id, group_id, user_id, type, choice, rationale, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			ON CONFLICT (activity_id, question_id, group_id, user_id, type) DO NOTHING`
		if _, err = tx.ExecContext(ctx, submissionQ,
			uuid.New().String(), activityID, fa.QuestionID, groupID, fa.SubmittedBy,
			string(discussion.TypeFinalChoice), string(fa.Choice), fa.Rationale, fa.SubmittedAt,
		); err != nil {
			return errors.Wrap(err, "inserting final submission")
		}
		return nil
	})
	if err != nil {
		return group.Group{}, err
	}
	return repo.GetGroup(ctx, groupID)
}

func (repo groupRepository) AssignGuests(ctx context.Context, activityID string, now time.Time, plan group.AssignPlan) ([]group.Group, error) {
	var groups []group.Group
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockActivity(ctx, tx, "groups", activityID); err != nil {
			return err
		}

		var rows []sessionRow
		if err := tx.SelectContext(ctx, &rows, `
			SELECT * FROM student_sessions
			WHERE activity_id = $1 AND group_id IS NULL AND expires_at > $2
			ORDER BY created_at
			FOR UPDATE`, activityID, now,
		); err != nil {
			return errors.Wrap(err, "selecting unassigned sessions")
		}
		unassigned := make([]guest.Session, 0, len(rows))
		for _, row := range rows {
			unassigned = append(unassigned, row.session())
		}

		var existing int
		if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM groups WHERE activity_id = $1`, activityID); err != nil {
			return errors.Wrap(err, "counting groups")
		}

		groups = plan(unassigned, existing)
		for _, grp := range groups {
			if err := insertGroup(ctx, tx, grp); err != nil {
				return err
			}
			memberIDs := make([]string, 0, len(grp.Members))
			for _, m := range grp.Members {
				memberIDs = append(memberIDs, m.UserID)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE student_sessions SET group_id = $1 WHERE id = ANY($2)`, grp.ID, pq.Array(memberIDs),
			); err != nil {
				return errors.Wrap(err, "binding sessions to group")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}
