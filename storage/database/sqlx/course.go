package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core/course"
)

type (
	courseRepository struct {
		db *sqlx.DB
	}

	courseRow struct {
		ID          string    `db:"id"`
		TeacherID   string    `db:"teacher_id"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		CreatedAt   time.Time `db:"created_at"`
	}

	questionRow struct {
		ID          string         `db:"id"`
		CourseID    string         `db:"course_id"`
		Title       string         `db:"title"`
		Prompt      string         `db:"prompt"`
		Context     string         `db:"context"`
		ConceptTags pq.StringArray `db:"concept_tags"`
		Choices     types.JSONText `db:"choices"`
		CreatedAt   time.Time      `db:"created_at"`
		UpdatedAt   time.Time      `db:"updated_at"`
	}
)

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (row courseRow) course() course.Course {
	return course.Course{
		ID:          row.ID,
		TeacherID:   row.TeacherID,
		Title:       row.Title,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
	}
}

func newQuestionRow(q course.Question) (questionRow, error) {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return questionRow{}, errors.Wrap(err, "encoding choices")
	}
	tags := q.ConceptTags
	if tags == nil {
		tags = []string{}
	}
	return questionRow{
		ID:          q.ID,
		CourseID:    q.CourseID,
		Title:       q.Title,
		Prompt:      q.Prompt,
		Context:     q.Context,
		ConceptTags: tags,
		Choices:     choices,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}, nil
}

func (row questionRow) question() (course.Question, error) {
	q := course.Question{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Title:       row.Title,
		Prompt:      row.Prompt,
		Context:     row.Context,
		ConceptTags: []string(row.ConceptTags),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if err := row.Choices.Unmarshal(&q.Choices); err != nil {
		return course.Question{}, errors.Wrap(err, "decoding choices")
	}
	return q, nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	const q = `
		INSERT INTO courses (id, teacher_id, title, description, created_at)
		VALUES (:id, :teacher_id, :title, :description, :created_at)`
	row := courseRow{
		ID:          crs.ID,
		TeacherID:   crs.TeacherID,
		Title:       crs.Title,
		Description: crs.Description,
		CreatedAt:   crs.CreatedAt,
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if !validID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM courses WHERE id = $1`, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "selecting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, teacherID string) ([]course.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM courses WHERE teacher_id = $1 ORDER BY created_at DESC, id`, teacherID,
	); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	crss := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		crss = append(crss, row.course())
	}
	return crss, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	if !validID(crs.ID) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	if err := repo.db.GetContext(ctx, &row,
		`UPDATE courses SET title = $1, description = $2 WHERE id = $3 RETURNING *`,
		crs.Title, crs.Description, crs.ID,
	); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "updating course")
	}
	return row.course(), nil
}

// DeleteCourse relies on questions and activities cascading from courses.
func (repo courseRepository) DeleteCourse(ctx context.Context, id string) error {
	if !validID(id) {
		return course.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	none, err := noRowsAffected(res)
	if err != nil {
		return err
	}
	if none {
		return course.ErrNotFound
	}
	return nil
}

func (repo courseRepository) CreateQuestion(ctx context.Context, q course.Question) (course.Question, error) {
	const query = `
		INSERT INTO questions (id, course_id, title, prompt, context, concept_tags, choices, created_at, updated_at)
		VALUES (:id, :course_id, :title, :prompt, :context, :concept_tags, :choices, :created_at, :updated_at)`
	row, err := newQuestionRow(q)
	if err != nil {
		return course.Question{}, err
	}
	if _, err = repo.db.NamedExecContext(ctx, query, row); err != nil {
		return course.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

func (repo courseRepository) UpdateQuestion(ctx context.Context, q course.Question) (course.Question, error) {
	const query = `
		UPDATE questions
		SET title = :title, prompt = :prompt, context = :context,
		    concept_tags = :concept_tags, choices = :choices, updated_at = :updated_at
		WHERE id = :id`
	row, err := newQuestionRow(q)
	if err != nil {
		return course.Question{}, err
	}
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return course.Question{}, errors.Wrap(err, "updating question")
	}
	none, err := noRowsAffected(res)
	if err != nil {
		return course.Question{}, err
	}
	if none {
		return course.Question{}, course.ErrQuestionNotFound
	}
	return repo.GetQuestion(ctx, q.ID)
}

func (repo courseRepository) GetQuestion(ctx context.Context, id string) (course.Question, error) {
	if !validID(id) {
		return course.Question{}, course.ErrQuestionNotFound
	}
	var row questionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM questions WHERE id = $1`, id); err != nil {
		return course.Question{}, trapNoRowsErr(err, course.ErrQuestionNotFound, "selecting question")
	}
	return row.question()
}

func (repo courseRepository) QueryQuestions(ctx context.Context, courseID string) ([]course.Question, error) {
	if !validID(courseID) {
		return []course.Question{}, nil
	}
	var rows []questionRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM questions WHERE course_id = $1 ORDER BY created_at, id`, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting questions")
	}
	qs := make([]course.Question, 0, len(rows))
	for _, row := range rows {
		q, err := row.question()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, nil
}

// DeleteQuestion refuses questions an activity asks. The activity_questions foreign key
// catches an activity created concurrently.
func (repo courseRepository) DeleteQuestion(ctx context.Context, id string) error {
	if !validID(id) {
		return course.ErrQuestionNotFound
	}
	var used bool
	if err := repo.db.GetContext(ctx, &used,
		`SELECT EXISTS (SELECT 1 FROM activity_questions WHERE question_id = $1)`, id,
	); err != nil {
		return errors.Wrap(err, "checking question use")
	}
	if used {
		return course.ErrQuestionInUse
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return course.ErrQuestionInUse
		}
		return errors.Wrap(err, "deleting question")
	}
	none, err := noRowsAffected(res)
	if err != nil {
		return err
	}
	if none {
		return course.ErrQuestionNotFound
	}
	return nil
}
