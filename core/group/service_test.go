package group_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/group"
	"github.com/trezcool/baraza/core/guest"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/core/round"
	"github.com/trezcool/baraza/tests"
)

func closeOpenRound(t *testing.T, env *testutil.Env, room testutil.Classroom) round.Round {
	t.Helper()
	ctx := context.Background()
	open, err := env.Svcs.Rounds.GetOpen(ctx, room.Activity.ID, room.Question.ID)
	require.NoError(t, err)
	closed, err := env.Svcs.Rounds.End(ctx, room.Teacher.Identity(), open.ID)
	require.NoError(t, err)
	return closed
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	newcomer := testutil.CreateProfile(t, env, identity.RoleStudent, "Dalila")
	ta := testutil.CreateProfile(t, env, identity.RoleTA, "Mr TA")
	teacher := room.Teacher.Identity()

	tests := []struct {
		name  string
		ng    group.NewGroup
		check func(error) bool
	}{
		{name: "leader not a member", ng: group.NewGroup{Name: "G", LeaderID: room.Leader().ID, MemberIDs: []string{newcomer.ID}}, check: core.IsValidationError},
		{name: "member not a student", ng: group.NewGroup{Name: "G", LeaderID: newcomer.ID, MemberIDs: []string{newcomer.ID, ta.ID}}, check: core.IsValidationError},
		{name: "member already grouped", ng: group.NewGroup{Name: "G", LeaderID: newcomer.ID, MemberIDs: []string{newcomer.ID, room.Leader().ID}}, check: core.IsConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Svcs.Groups.Create(ctx, teacher, room.Activity.ID, tt.ng)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	grp, err := env.Svcs.Groups.Create(ctx, teacher, room.Activity.ID, group.NewGroup{Name: "Solo", LeaderID: newcomer.ID, MemberIDs: []string{newcomer.ID}})
	require.NoError(t, err)
	assert.Equal(t, newcomer.ID, grp.LeaderID)
	if assert.Len(t, grp.Members, 1) {
		assert.Equal(t, "Dalila", grp.Members[0].DisplayName)
		assert.Equal(t, 1, grp.Members[0].SeatNo)
	}

	_, err = env.Svcs.Groups.Create(ctx, newcomer.Identity(), room.Activity.ID, group.NewGroup{Name: "Mine", LeaderID: newcomer.ID, MemberIDs: []string{newcomer.ID}})
	assert.Equal(t, core.ErrUnauthorized, err)

	// the conflict names the group holding the seat
	late := testutil.CreateProfile(t, env, identity.RoleStudent, "Eshe")
	_, err = env.Svcs.Groups.Create(ctx, teacher, room.Activity.ID, group.NewGroup{Name: "Late", LeaderID: late.ID, MemberIDs: []string{late.ID, room.Students[2].ID}})
	require.True(t, core.IsConflict(err), "unexpected error: %v", err)
	taken, ok := err.(*core.ConflictError).Existing.(group.Group)
	require.True(t, ok)
	assert.Equal(t, room.Group.ID, taken.ID)
}

func TestService_Create_concurrent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	teacher := room.Teacher.Identity()
	shared := testutil.CreateProfile(t, env, identity.RoleStudent, "Shared")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < 6; i++ {
		partner := testutil.CreateProfile(t, env, identity.RoleStudent, "Partner")
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Svcs.Groups.Create(ctx, teacher, room.Activity.ID, group.NewGroup{
				Name:      "Pair",
				LeaderID:  partner.ID,
				MemberIDs: []string{partner.ID, shared.ID},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case core.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 5, conflicts)

	groups, err := env.Svcs.Groups.List(ctx, teacher, room.Activity.ID)
	require.NoError(t, err)
	var seats int
	for _, grp := range groups {
		if grp.HasMember(shared.ID) {
			seats++
		}
	}
	assert.Equal(t, 1, seats)
}

func TestService_SubmitFinalChoice(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	leader := room.Leader().Identity()
	sf := group.SubmitFinal{QuestionID: room.Question.ID, Choice: "B", Rationale: testutil.Rationale}

	// rounds still open
	_, err := env.Svcs.Groups.SubmitFinalChoice(ctx, leader, room.Activity.ID, room.Group.ID, sf)
	assert.True(t, core.IsStateError(err), "unexpected error: %v", err)

	closeOpenRound(t, env, room)

	tests := []struct {
		name   string
		caller identity.Identity
		sf     group.SubmitFinal
		check  func(error) bool
	}{
		{name: "not the leader", caller: room.Students[1].Identity(), sf: sf, check: core.IsUnauthorized},
		{name: "teacher", caller: room.Teacher.Identity(), sf: sf, check: core.IsUnauthorized},
		{name: "short rationale", caller: leader, sf: group.SubmitFinal{QuestionID: room.Question.ID, Choice: "B", Rationale: "Because B."}, check: core.IsValidationError},
		{name: "bad choice", caller: leader, sf: group.SubmitFinal{QuestionID: room.Question.ID, Choice: "E", Rationale: testutil.Rationale}, check: core.IsValidationError},
		{name: "question not discussed", caller: leader, sf: group.SubmitFinal{QuestionID: "other", Choice: "B", Rationale: testutil.Rationale}, check: core.IsStateError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Svcs.Groups.SubmitFinalChoice(ctx, tt.caller, room.Activity.ID, room.Group.ID, tt.sf)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	grp, err := env.Svcs.Groups.SubmitFinalChoice(ctx, leader, room.Activity.ID, room.Group.ID, sf)
	require.NoError(t, err)
	fa, ok := grp.FinalAnswer(room.Question.ID)
	require.True(t, ok)
	assert.EqualValues(t, "B", fa.Choice)
	assert.Equal(t, room.Leader().ID, fa.SubmittedBy)

	// the final answer is immutable
	_, err = env.Svcs.Groups.SubmitFinalChoice(ctx, leader, room.Activity.ID, room.Group.ID, group.SubmitFinal{
		QuestionID: room.Question.ID, Choice: "A", Rationale: testutil.Rationale,
	})
	require.True(t, core.IsConflict(err), "unexpected error: %v", err)
	conflict := err.(*core.ConflictError)
	existing, ok := conflict.Existing.(group.FinalAnswer)
	require.True(t, ok)
	assert.EqualValues(t, "B", existing.Choice)

	// and recorded as a final_choice submission
	subs, err := env.Svcs.Discussions.GetGroupChoices(ctx, leader, room.Group.ID, room.Question.ID)
	require.NoError(t, err)
	var finals int
	for _, sub := range subs {
		if sub.Type == discussion.TypeFinalChoice {
			finals++
			assert.EqualValues(t, "B", sub.Choice)
		}
	}
	assert.Equal(t, 1, finals)
	assert.Contains(t, env.Notifier.Types(), core.EventFinalSubmitted)
}

func TestService_SubmitFinalChoice_concurrent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	closeOpenRound(t, env, room)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for _, choice := range []string{"A", "B", "C", "D", "A", "B"} {
		wg.Add(1)
		go func(choice string) {
			defer wg.Done()
			_, err := env.Svcs.Groups.SubmitFinalChoice(ctx, room.Leader().Identity(), room.Activity.ID, room.Group.ID, group.SubmitFinal{
				QuestionID: room.Question.ID, Choice: choice, Rationale: testutil.Rationale,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if core.IsConflict(err) {
				conflicts++
			}
		}(choice)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 5, conflicts)
}

func TestService_AutoAssignGuests(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	teacher := room.Teacher.Identity()
	inv := testutil.CreateInvitation(t, env, room.Teacher, room.Activity.ID, guest.NewInvitation{})

	var tokens []string
	for _, number := range []string{"G-1", "G-2", "G-3", "G-4", "G-5"} {
		tokens = append(tokens, testutil.Join(t, env, inv, number, "Guest "+number).Token)
	}

	_, err := env.Svcs.Groups.AutoAssignGuests(ctx, room.Leader().Identity(), room.Activity.ID, 2)
	assert.Equal(t, core.ErrUnauthorized, err)

	groups, err := env.Svcs.Groups.AutoAssignGuests(ctx, teacher, room.Activity.ID, 2)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Group 2", groups[0].Name)
	assert.Equal(t, "Group 3", groups[1].Name)
	assert.Equal(t, 5, len(groups[0].Members)+len(groups[1].Members))

	// every guest is bound to exactly one group
	for _, token := range tokens {
		caller, err := env.Svcs.Guests.Resolve(ctx, token)
		require.NoError(t, err)
		tmp := caller.(identity.Temporary)
		require.NotEmpty(t, tmp.GroupID)

		mine, err := env.Svcs.Groups.Mine(ctx, caller, room.Activity.ID)
		require.NoError(t, err)
		assert.Equal(t, tmp.GroupID, mine.ID)
	}

	// nobody is left to assign
	again, err := env.Svcs.Groups.AutoAssignGuests(ctx, teacher, room.Activity.ID, 2)
	require.NoError(t, err)
	assert.Empty(t, again)

	all, err := env.Svcs.Groups.List(ctx, teacher, room.Activity.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestService_AutoAssignGuests_concurrent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	room := testutil.NewClassroom(t, env)
	inv := testutil.CreateInvitation(t, env, room.Teacher, room.Activity.ID, guest.NewInvitation{})
	for _, number := range []string{"G-1", "G-2", "G-3", "G-4", "G-5", "G-6", "G-7", "G-8"} {
		testutil.Join(t, env, inv, number, "Guest "+number)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.Svcs.Groups.AutoAssignGuests(ctx, room.Teacher.Identity(), room.Activity.ID, 4)
		}()
	}
	wg.Wait()

	groups, err := env.Svcs.Groups.List(ctx, room.Teacher.Identity(), room.Activity.ID)
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, grp := range groups {
		for _, m := range grp.Members {
			assert.False(t, seen[m.UserID], "%s assigned twice", m.UserID)
			seen[m.UserID] = true
		}
	}
	assert.Len(t, seen, 3+8)
}
