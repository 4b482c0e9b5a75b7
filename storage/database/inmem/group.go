package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/group"
	"github.com/trezcool/baraza/core/guest"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{db: db}
}

func cloneGroup(grp group.Group) group.Group {
	members := make([]group.Member, len(grp.Members))
	copy(members, grp.Members)
	grp.Members = members
	finals := make([]group.FinalAnswer, len(grp.FinalAnswers))
	copy(finals, grp.FinalAnswers)
	grp.FinalAnswers = finals
	return grp
}

func (repo *groupRepository) CreateGroup(_ context.Context, grp group.Group) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.activities[grp.ActivityID]; !ok {
		return group.Group{}, activity.ErrNotFound
	}
	for _, existing := range repo.queryGroups(grp.ActivityID) {
		for _, m := range grp.Members {
			if existing.HasMember(m.UserID) {
				return group.Group{}, &group.SeatTakenError{Group: existing}
			}
		}
	}
	grp = cloneGroup(grp)
	repo.db.groups[grp.ID] = grp
	return cloneGroup(grp), nil
}

func (repo *groupRepository) GetGroup(_ context.Context, id string) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if grp, ok := repo.db.groups[id]; ok {
		return cloneGroup(grp), nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) queryGroups(activityID string) []group.Group {
	groups := make([]group.Group, 0)
	for _, grp := range repo.db.groups {
		if grp.ActivityID == activityID {
			groups = append(groups, cloneGroup(grp))
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].CreatedAt.Before(groups[j].CreatedAt)
		}
		return groups[i].Name < groups[j].Name
	})
	return groups
}

func (repo *groupRepository) QueryGroups(_ context.Context, activityID string) ([]group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryGroups(activityID), nil
}

func (repo *groupRepository) IsSeated(_ context.Context, activityID, userID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, grp := range repo.db.groups {
		if grp.ActivityID == activityID && grp.HasMember(userID) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *groupRepository) SetFinalAnswer(_ context.Context, groupID string, fa group.FinalAnswer) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp, ok := repo.db.groups[groupID]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	if _, answered := grp.FinalAnswer(fa.QuestionID); answered {
		return group.Group{}, group.ErrFinalExists
	}
	grp = cloneGroup(grp)
	grp.FinalAnswers = append(grp.FinalAnswers, fa)
	repo.db.groups[groupID] = grp

	sub := discussion.Submission{
		ID:         uuid.New().String(),
		ActivityID: grp.ActivityID,
		QuestionID: fa.QuestionID,
		GroupID:    groupID,
		UserID:     fa.SubmittedBy,
		Type:       discussion.TypeFinalChoice,
		Choice:     fa.Choice,
		Rationale:  fa.Rationale,
		CreatedAt:  fa.SubmittedAt,
		UpdatedAt:  fa.SubmittedAt,
	}
	repo.db.submissions[sub.ID] = sub
	return cloneGroup(grp), nil
}

func (repo *groupRepository) AssignGuests(_ context.Context, activityID string, now time.Time, plan group.AssignPlan) ([]group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.activities[activityID]; !ok {
		return nil, activity.ErrNotFound
	}
	unassigned := make([]guest.Session, 0)
	for _, sess := range repo.db.sessions {
		if sess.ActivityID == activityID && sess.GroupID == "" && !sess.Expired(now) {
			unassigned = append(unassigned, sess)
		}
	}
	sort.Slice(unassigned, func(i, j int) bool { return unassigned[i].CreatedAt.Before(unassigned[j].CreatedAt) })

	groups := plan(unassigned, len(repo.queryGroups(activityID)))
	for _, grp := range groups {
		repo.db.groups[grp.ID] = cloneGroup(grp)
		for _, m := range grp.Members {
			if sess, ok := repo.db.sessions[m.UserID]; ok {
				sess.GroupID = grp.ID
				repo.db.sessions[m.UserID] = sess
			}
		}
	}
	return groups, nil
}
