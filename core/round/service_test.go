package round_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/core/round"
	"github.com/trezcool/baraza/tests"
)

func TestDefaultRules(t *testing.T) {
	tests := []struct {
		roundNo int
		want    round.Rules
	}{
		{roundNo: 1, want: round.Rules{MinLen: 20}},
		{roundNo: 2, want: round.Rules{MinLen: 20}},
		{roundNo: 3, want: round.Rules{MinLen: 15, RequireReplyToPeer: true}},
		{roundNo: 4, want: round.Rules{MinLen: 15}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, round.DefaultRules(tt.roundNo), "round %d", tt.roundNo)
	}
	assert.Equal(t, 20, round.Rules{}.MinLenOrDefault())
}

func TestService_Start(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	teacher := room.Teacher.Identity()

	first, err := env.Svcs.Rounds.GetOpen(ctx, room.Activity.ID, room.Question.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RoundNo)

	second, err := env.Svcs.Rounds.Start(ctx, teacher, room.Activity.ID, round.NewRound{QuestionID: room.Question.ID, RoundNo: 2})
	require.NoError(t, err)
	assert.True(t, second.IsOpen())
	assert.Equal(t, round.Rules{MinLen: 20}, second.Rules)

	// only the new round is open
	open, err := env.Svcs.Rounds.GetOpen(ctx, room.Activity.ID, room.Question.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, open.ID)

	first, err = env.Svcs.Rounds.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, round.StatusClosed, first.Status)
	require.NotNil(t, first.CompletedAt)

	rounds, err := env.Svcs.Rounds.List(ctx, teacher, room.Activity.ID, room.Question.ID)
	require.NoError(t, err)
	if assert.Len(t, rounds, 2) {
		assert.Equal(t, []int{1, 2}, []int{rounds[0].RoundNo, rounds[1].RoundNo})
	}

	types := env.Notifier.Types()
	assert.Equal(t, []core.EventType{core.EventRoundEnded, core.EventRoundStarted}, types[len(types)-2:])
}

func TestService_Start_errors(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	otherTeacher := testutil.CreateProfile(t, env, identity.RoleTeacher, "Mr Other")

	draftCourse := testutil.CreateCourse(t, env, room.Teacher)
	draftQ := testutil.CreateQuestion(t, env, room.Teacher, draftCourse.ID)
	draft := testutil.CreateActivity(t, env, room.Teacher, draftCourse.ID, draftQ.ID)

	tests := []struct {
		name       string
		caller     identity.Identity
		activityID string
		questionID string
		check      func(error) bool
	}{
		{name: "student", caller: room.Leader().Identity(), activityID: room.Activity.ID, questionID: room.Question.ID, check: core.IsUnauthorized},
		{name: "other teacher", caller: otherTeacher.Identity(), activityID: room.Activity.ID, questionID: room.Question.ID, check: core.IsUnauthorized},
		{name: "unknown activity", caller: room.Teacher.Identity(), activityID: "nope", questionID: room.Question.ID, check: core.IsUnauthorized},
		{name: "draft activity", caller: room.Teacher.Identity(), activityID: draft.ID, questionID: draftQ.ID, check: core.IsStateError},
		{name: "foreign question", caller: room.Teacher.Identity(), activityID: room.Activity.ID, questionID: draftQ.ID, check: core.IsStateError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Svcs.Rounds.Start(ctx, tt.caller, tt.activityID, round.NewRound{QuestionID: tt.questionID, RoundNo: 2})
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestService_End(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	teacher := room.Teacher.Identity()

	open, err := env.Svcs.Rounds.GetOpen(ctx, room.Activity.ID, room.Question.ID)
	require.NoError(t, err)

	_, err = env.Svcs.Rounds.End(ctx, room.Leader().Identity(), open.ID)
	assert.Equal(t, core.ErrUnauthorized, err)

	closed, err := env.Svcs.Rounds.End(ctx, teacher, open.ID)
	require.NoError(t, err)
	assert.Equal(t, round.StatusClosed, closed.Status)
	assert.NotNil(t, closed.CompletedAt)

	_, err = env.Svcs.Rounds.End(ctx, teacher, open.ID)
	assert.Equal(t, round.ErrAlreadyEnded, err)

	_, err = env.Svcs.Rounds.GetOpen(ctx, room.Activity.ID, room.Question.ID)
	assert.Equal(t, round.ErrNoOpenRound, err)
}

// staleGate approves every start, as a gate that read the activity just before it ended would.
type staleGate struct{}

func (staleGate) AuthorizeOwner(context.Context, identity.Identity, string) error { return nil }

func (staleGate) CheckRunningQuestion(context.Context, string, string) error { return nil }

func TestService_Start_activityEnded(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)

	_, err := env.Svcs.Activities.End(ctx, room.Teacher.Identity(), room.Activity.ID)
	require.NoError(t, err)

	rounds := round.NewService(env.Repos.Rounds, staleGate{}, env.Notifier)
	_, err = rounds.Start(ctx, room.Teacher.Identity(), room.Activity.ID, round.NewRound{QuestionID: room.Question.ID, RoundNo: 2})
	assert.Equal(t, round.ErrActivityNotRunning, err)

	_, err = env.Svcs.Rounds.GetOpen(ctx, room.Activity.ID, room.Question.ID)
	assert.Equal(t, round.ErrNoOpenRound, err)
}
