package group

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/guest"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/core/round"
)

var (
	ErrNotFound = core.NewNotFoundError("group")
	// ErrFinalExists is returned by Repository.SetFinalAnswer when the group already answered the question.
	ErrFinalExists = errors.New("final answer already submitted")

	shuffleFunc = rand.Shuffle // mockable

	errLeaderNotMember = errors.New("the leader must be a member of the group")
	errNotStudent      = errors.New("every member must be a student")
	errAlreadyGrouped  = "student is already in a group of this activity"
)

// SeatTakenError is returned by Repository.CreateGroup when a member already sits in Group.
type SeatTakenError struct {
	Group Group
}

func (e *SeatTakenError) Error() string {
	return errAlreadyGrouped
}

type (
	Repository interface {
		// CreateGroup inserts grp unless one of its members already sits in a group of the
		// same activity, in which case a *SeatTakenError names that group. Concurrent calls for
		// the same activity are serialized.
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		QueryGroups(ctx context.Context, activityID string) ([]Group, error)
		// IsSeated reports whether the user is a member of a group of the activity.
		IsSeated(ctx context.Context, activityID, userID string) (bool, error)
		// SetFinalAnswer records the answer and its final_choice submission only if the group
		// has not answered the question yet; ErrFinalExists otherwise.
		SetFinalAnswer(ctx context.Context, groupID string, fa FinalAnswer) (Group, error)
		// AssignGuests runs plan over the unassigned live guest sessions of the activity and
		// persists the groups it returns, binding each member session to its group. Concurrent
		// calls for the same activity are serialized so no guest lands in two groups.
		AssignGuests(ctx context.Context, activityID string, now time.Time, plan AssignPlan) ([]Group, error)
	}

	// AssignPlan partitions unassigned guests into new groups. existing is the number of
	// groups the activity already has.
	AssignPlan func(unassigned []guest.Session, existing int) []Group

	Service struct {
		repo            Repository
		activities      *activity.Service
		rounds          round.Repository
		profiles        identity.Repository
		notifier        core.Notifier
		rationaleMinLen int
	}
)

func NewService(
	repo Repository,
	activities *activity.Service,
	rounds round.Repository,
	profiles identity.Repository,
	notifier core.Notifier,
	rationaleMinLen int,
) *Service {
	return &Service{
		repo:            repo,
		activities:      activities,
		rounds:          rounds,
		profiles:        profiles,
		notifier:        notifier,
		rationaleMinLen: rationaleMinLen,
	}
}

// Create forms a group of enrolled students. Seats follow the order of ng.MemberIDs.
func (svc *Service) Create(ctx context.Context, caller identity.Identity, activityID string, ng NewGroup) (Group, error) {
	act, err := svc.activities.Authorize(ctx, caller, activityID)
	if err != nil {
		return Group{}, err
	}
	if act.Status == activity.StatusEnded {
		return Group{}, core.NewStateError("activity has ended")
	}

	memberIDs := uniqueIDs(ng.MemberIDs)
	if !contains(memberIDs, ng.LeaderID) {
		return Group{}, core.NewValidationError(errLeaderNotMember, core.FieldError{Field: "leader_id", Error: errLeaderNotMember.Error()})
	}
	profs, err := svc.profiles.QueryProfiles(ctx, memberIDs)
	if err != nil {
		return Group{}, errors.Wrap(err, "querying profiles")
	}
	names := make(map[string]string, len(profs))
	for _, prof := range profs {
		if prof.Role == identity.RoleStudent {
			names[prof.ID] = prof.DisplayName
		}
	}
	if len(names) != len(memberIDs) {
		return Group{}, core.NewValidationError(errNotStudent, core.FieldError{Field: "member_ids", Error: errNotStudent.Error()})
	}

	grp := Group{
		ID:         uuid.New().String(),
		ActivityID: activityID,
		Name:       ng.Name,
		LeaderID:   ng.LeaderID,
		CreatedAt:  time.Now().UTC(),
	}
	for i, id := range memberIDs {
		grp.Members = append(grp.Members, Member{UserID: id, DisplayName: names[id], SeatNo: i + 1})
	}
	grp, err = svc.repo.CreateGroup(ctx, grp)
	if err != nil {
		if taken, ok := err.(*SeatTakenError); ok {
			return Group{}, core.NewConflictError(errAlreadyGrouped, taken.Group)
		}
		return Group{}, errors.Wrap(err, "creating group")
	}
	return grp, nil
}

// AutoAssignGuests shuffles the unassigned guests of the activity into groups of groupSize.
// A trailing group of one is merged into the previous group. The first seat of each group leads.
func (svc *Service) AutoAssignGuests(ctx context.Context, caller identity.Identity, activityID string, groupSize int) ([]Group, error) {
	act, err := svc.activities.Authorize(ctx, caller, activityID)
	if err != nil {
		return nil, err
	}
	return svc.autoAssign(ctx, act, groupSize)
}

// AutoAssignAs runs the guest assignment without a caller. Used by the admin CLI.
func (svc *Service) AutoAssignAs(ctx context.Context, activityID string, groupSize int) ([]Group, error) {
	act, err := svc.activities.Get(ctx, activityID)
	if err != nil {
		return nil, errors.Wrap(err, "getting activity")
	}
	return svc.autoAssign(ctx, act, groupSize)
}

func (svc *Service) autoAssign(ctx context.Context, act activity.Activity, groupSize int) ([]Group, error) {
	if act.Status == activity.StatusEnded {
		return nil, core.NewStateError("activity has ended")
	}
	if groupSize < 2 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "group_size", Error: "group_size must be 2 or more"})
	}

	now := time.Now().UTC()
	plan := func(unassigned []guest.Session, existing int) []Group {
		return partition(act.ID, unassigned, existing, groupSize, now)
	}
	groups, err := svc.repo.AssignGuests(ctx, act.ID, now, plan)
	if err != nil {
		return nil, errors.Wrap(err, "assigning guests")
	}
	if len(groups) > 0 {
		svc.notifier.Notify(ctx, core.Event{Type: core.EventGroupsAssigned, ActivityID: act.ID, At: now})
	}
	return groups, nil
}

func partition(activityID string, guests []guest.Session, existing, size int, now time.Time) []Group {
	if len(guests) == 0 {
		return nil
	}
	shuffled := make([]guest.Session, len(guests))
	copy(shuffled, guests)
	shuffleFunc(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	var chunks [][]guest.Session
	for start := 0; start < len(shuffled); start += size {
		end := start + size
		if end > len(shuffled) {
			end = len(shuffled)
		}
		chunks = append(chunks, shuffled[start:end])
	}
	if n := len(chunks); n > 1 && len(chunks[n-1]) == 1 {
		chunks[n-2] = append(chunks[n-2], chunks[n-1][0])
		chunks = chunks[:n-1]
	}

	groups := make([]Group, 0, len(chunks))
	for i, chunk := range chunks {
		grp := Group{
			ID:         uuid.New().String(),
			ActivityID: activityID,
			Name:       fmt.Sprintf("Group %d", existing+i+1),
			LeaderID:   chunk[0].ID,
			CreatedAt:  now,
		}
		for seat, sess := range chunk {
			grp.Members = append(grp.Members, Member{UserID: sess.ID, DisplayName: sess.DisplayName, SeatNo: seat + 1})
		}
		groups = append(groups, grp)
	}
	return groups
}

// Get returns the group to its members and to the owner of its activity.
func (svc *Service) Get(ctx context.Context, caller identity.Identity, id string) (Group, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Group{}, core.ErrUnauthorized
		}
		return Group{}, errors.Wrap(err, "getting group")
	}
	if caller.IsStudent() {
		if !grp.InScope(caller) {
			return Group{}, core.ErrUnauthorized
		}
		return grp, nil
	}
	if err = svc.activities.AuthorizeOwner(ctx, caller, grp.ActivityID); err != nil {
		return Group{}, err
	}
	return grp, nil
}

// Mine returns the caller's group in the activity.
func (svc *Service) Mine(ctx context.Context, caller identity.Identity, activityID string) (Group, error) {
	if !caller.IsStudent() {
		return Group{}, core.ErrUnauthorized
	}
	if tmp, ok := caller.(identity.Temporary); ok && tmp.ActivityID != activityID {
		return Group{}, core.ErrUnauthorized
	}
	groups, err := svc.repo.QueryGroups(ctx, activityID)
	if err != nil {
		return Group{}, errors.Wrap(err, "querying groups")
	}
	for _, grp := range groups {
		if grp.InScope(caller) {
			return grp, nil
		}
	}
	return Group{}, ErrNotFound
}

func (svc *Service) List(ctx context.Context, caller identity.Identity, activityID string) ([]Group, error) {
	if err := svc.activities.AuthorizeOwner(ctx, caller, activityID); err != nil {
		return nil, err
	}
	return svc.repo.QueryGroups(ctx, activityID)
}

// SubmitFinalChoice records the group's final answer on a question. Only the leader may submit,
// only once no round of the question is open, and only once per question.
func (svc *Service) SubmitFinalChoice(ctx context.Context, caller identity.Identity, activityID, groupID string, sf SubmitFinal) (Group, error) {
	if caller == nil {
		return Group{}, core.ErrUnauthenticated
	}
	if !caller.IsStudent() {
		return Group{}, core.ErrUnauthorized
	}
	grp, err := svc.repo.GetGroup(ctx, groupID)
	if err != nil {
		if err == ErrNotFound {
			return Group{}, core.ErrUnauthorized
		}
		return Group{}, errors.Wrap(err, "getting group")
	}
	if grp.ActivityID != activityID || !grp.InScope(caller) || !grp.IsLeader(caller.Subject()) {
		return Group{}, core.ErrUnauthorized
	}

	if _, err = svc.rounds.GetOpenRound(ctx, activityID, sf.QuestionID); err == nil {
		return Group{}, core.NewStateError("rounds are still open for this question")
	} else if err != round.ErrNoOpenRound {
		return Group{}, errors.Wrap(err, "getting open round")
	}
	rounds, err := svc.rounds.QueryRounds(ctx, activityID, sf.QuestionID)
	if err != nil {
		return Group{}, errors.Wrap(err, "querying rounds")
	}
	if len(rounds) == 0 {
		return Group{}, core.NewStateError("discussion of this question has not started")
	}

	choice := course.ChoiceKey(sf.Choice)
	if !choice.Valid() {
		return Group{}, core.NewValidationError(nil, core.FieldError{Field: "choice", Error: "must be one of A, B, C or D"})
	}
	if n := core.CharCount(sf.Rationale); n < svc.rationaleMinLen {
		msg := fmt.Sprintf("Rationale must be at least %d characters (currently %d)", svc.rationaleMinLen, n)
		return Group{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "rationale", Error: msg})
	}

	fa := FinalAnswer{
		QuestionID:  sf.QuestionID,
		Choice:      choice,
		Rationale:   sf.Rationale,
		SubmittedBy: caller.Subject(),
		SubmittedAt: time.Now().UTC(),
	}
	updated, err := svc.repo.SetFinalAnswer(ctx, groupID, fa)
	if err != nil {
		if err == ErrFinalExists {
			existing, _ := grp.FinalAnswer(sf.QuestionID)
			if fresh, gErr := svc.repo.GetGroup(ctx, groupID); gErr == nil {
				existing, _ = fresh.FinalAnswer(sf.QuestionID)
			}
			return Group{}, core.NewConflictError("final answer already submitted", existing)
		}
		return Group{}, errors.Wrap(err, "setting final answer")
	}
	svc.notifier.Notify(ctx, core.Event{
		Type:       core.EventFinalSubmitted,
		ActivityID: activityID,
		QuestionID: sf.QuestionID,
		GroupID:    groupID,
		At:         fa.SubmittedAt,
	})
	return updated, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
