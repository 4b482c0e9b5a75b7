package course_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/tests"
)

func choices(correct ...course.ChoiceKey) course.Choices {
	c := course.Choices{
		A: course.Choice{Text: " 0 to 9 "},
		B: course.Choice{Text: "0 to 10"},
		C: course.Choice{Text: "1 to 10"},
		D: course.Choice{Text: "Nothing"},
	}
	for _, key := range correct {
		switch key {
		case course.ChoiceA:
			c.A.IsCorrect = true
		case course.ChoiceB:
			c.B.IsCorrect = true
		case course.ChoiceC:
			c.C.IsCorrect = true
		case course.ChoiceD:
			c.D.IsCorrect = true
		}
	}
	return c
}

func TestService_CreateCourse(t *testing.T) {
	env := testutil.NewEnv(t)
	student := testutil.CreateProfile(t, env, identity.RoleStudent, "Amani")
	ta := testutil.CreateProfile(t, env, identity.RoleTA, "Mr TA")

	_, err := env.Svcs.Courses.CreateCourse(context.Background(), student.Identity(), course.NewCourse{Title: "Nope"})
	assert.Equal(t, core.ErrUnauthorized, err)

	crs, err := env.Svcs.Courses.CreateCourse(context.Background(), ta.Identity(), course.NewCourse{Title: "Algorithms"})
	require.NoError(t, err)
	assert.Equal(t, ta.ID, crs.TeacherID)
}

func TestService_CreateQuestion(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teacher := testutil.CreateProfile(t, env, identity.RoleTeacher, "Ms Teacher")
	other := testutil.CreateProfile(t, env, identity.RoleTeacher, "Mr Other")
	crs := testutil.CreateCourse(t, env, teacher)

	tests := []struct {
		name    string
		caller  identity.Identity
		choices course.Choices
		wantErr func(error) bool
	}{
		{name: "no correct choice", caller: teacher.Identity(), choices: choices(), wantErr: core.IsValidationError},
		{name: "two correct choices", caller: teacher.Identity(), choices: choices(course.ChoiceA, course.ChoiceC), wantErr: core.IsValidationError},
		{name: "not the owner", caller: other.Identity(), choices: choices(course.ChoiceB), wantErr: core.IsUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Svcs.Courses.CreateQuestion(ctx, tt.caller, crs.ID, course.NewQuestion{Title: "Q", Prompt: "P", Choices: tt.choices})
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
		})
	}

	q, err := env.Svcs.Courses.CreateQuestion(ctx, teacher.Identity(), crs.ID, course.NewQuestion{
		Title:       "Off by one",
		Prompt:      "What does the loop print?",
		ConceptTags: []string{" loops ", "Boundary", "", "boundary"},
		Choices:     choices(course.ChoiceB),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"loops", "Boundary"}, q.ConceptTags)
	assert.Equal(t, "0 to 9", q.Choices.A.Text)
	key, ok := q.Choices.Correct()
	require.True(t, ok)
	assert.Equal(t, course.ChoiceB, key)

	qs, err := env.Svcs.Courses.ListQuestions(ctx, teacher.Identity(), crs.ID)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}

func TestService_UpdateQuestion(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teacher := testutil.CreateProfile(t, env, identity.RoleTeacher, "Ms Teacher")
	crs := testutil.CreateCourse(t, env, teacher)
	q := testutil.CreateQuestion(t, env, teacher, crs.ID)

	_, err := env.Svcs.Courses.UpdateQuestion(ctx, teacher.Identity(), "unknown", course.UpdateQuestion{Choices: choices(course.ChoiceA)})
	assert.Equal(t, core.ErrUnauthorized, err)

	updated, err := env.Svcs.Courses.UpdateQuestion(ctx, teacher.Identity(), q.ID, course.UpdateQuestion{
		Title:   "Off by one, again",
		Prompt:  q.Prompt,
		Choices: choices(course.ChoiceD),
	})
	require.NoError(t, err)
	assert.Equal(t, "Off by one, again", updated.Title)
	assert.True(t, updated.Choices.D.IsCorrect)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
}

func TestQuestion_Public(t *testing.T) {
	q := course.Question{Choices: choices(course.ChoiceC)}
	pub := q.Public()

	_, ok := pub.Choices.Correct()
	assert.False(t, ok)
	assert.Equal(t, "1 to 10", pub.Choices.C.Text)
	assert.True(t, q.Choices.C.IsCorrect, "original is untouched")
}

func TestService_courses(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teacher := testutil.CreateProfile(t, env, identity.RoleTeacher, "Ms Teacher")
	other := testutil.CreateProfile(t, env, identity.RoleTeacher, "Mr Other")
	first := testutil.CreateCourse(t, env, teacher)
	second := testutil.CreateCourse(t, env, teacher)
	testutil.CreateCourse(t, env, other)

	crss, err := env.Svcs.Courses.ListCourses(ctx, teacher.Identity())
	require.NoError(t, err)
	ids := make([]string, 0, len(crss))
	for _, crs := range crss {
		ids = append(ids, crs.ID)
	}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	_, err = env.Svcs.Courses.ListCourses(ctx, nil)
	assert.Equal(t, core.ErrUnauthorized, err)

	updated, err := env.Svcs.Courses.UpdateCourse(ctx, teacher.Identity(), first.ID, course.UpdateCourse{Title: "Algorithms", Description: "Week 1 to 6"})
	require.NoError(t, err)
	assert.Equal(t, "Algorithms", updated.Title)
	assert.Equal(t, first.CreatedAt, updated.CreatedAt)

	_, err = env.Svcs.Courses.UpdateCourse(ctx, other.Identity(), first.ID, course.UpdateCourse{Title: "Mine now"})
	assert.Equal(t, core.ErrUnauthorized, err)
	_, err = env.Svcs.Courses.UpdateCourse(ctx, teacher.Identity(), "nope", course.UpdateCourse{Title: "Ghost"})
	assert.Equal(t, core.ErrUnauthorized, err)
}

func TestService_DeleteCourse(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	other := testutil.CreateProfile(t, env, identity.RoleTeacher, "Mr Other")

	err := env.Svcs.Courses.DeleteCourse(ctx, other.Identity(), room.Course.ID)
	assert.Equal(t, core.ErrUnauthorized, err)

	require.NoError(t, env.Svcs.Courses.DeleteCourse(ctx, room.Teacher.Identity(), room.Course.ID))

	// questions and activities go with the course
	_, err = env.Svcs.Courses.GetCourse(ctx, room.Course.ID)
	assert.Equal(t, course.ErrNotFound, err)
	_, err = env.Svcs.Courses.GetQuestion(ctx, room.Question.ID)
	assert.Equal(t, course.ErrQuestionNotFound, err)
	_, err = env.Svcs.Activities.Get(ctx, room.Activity.ID)
	assert.True(t, core.IsNotFound(err), "unexpected error: %v", err)
	groups, err := env.Repos.Groups.QueryGroups(ctx, room.Activity.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestService_DeleteQuestion(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	spare := testutil.CreateQuestion(t, env, room.Teacher, room.Course.ID)
	other := testutil.CreateProfile(t, env, identity.RoleTeacher, "Mr Other")

	tests := []struct {
		name    string
		caller  identity.Identity
		id      string
		wantErr error
	}{
		{name: "not the owner", caller: other.Identity(), id: spare.ID, wantErr: core.ErrUnauthorized},
		{name: "unknown", caller: room.Teacher.Identity(), id: "nope", wantErr: core.ErrUnauthorized},
		{name: "asked by an activity", caller: room.Teacher.Identity(), id: room.Question.ID, wantErr: course.ErrQuestionInUse},
		{name: "unused", caller: room.Teacher.Identity(), id: spare.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Svcs.Courses.DeleteQuestion(ctx, tt.caller, tt.id)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	qs, err := env.Svcs.Courses.ListQuestions(ctx, room.Teacher.Identity(), room.Course.ID)
	require.NoError(t, err)
	if assert.Len(t, qs, 1) {
		assert.Equal(t, room.Question.ID, qs[0].ID)
	}
}
