package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/baraza/core/activity"
)

type activityRepository struct {
	db *DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateActivity(_ context.Context, act activity.Activity) (activity.Activity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	act.QuestionIDs = copyStrings(act.QuestionIDs)
	repo.db.activities[act.ID] = act
	return act, nil
}

func (repo *activityRepository) GetActivity(_ context.Context, id string) (activity.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if act, ok := repo.db.activities[id]; ok {
		act.QuestionIDs = copyStrings(act.QuestionIDs)
		return act, nil
	}
	return activity.Activity{}, activity.ErrNotFound
}

func (repo *activityRepository) QueryActivities(_ context.Context, courseID string) ([]activity.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	acts := make([]activity.Activity, 0)
	for _, act := range repo.db.activities {
		if act.CourseID == courseID {
			act.QuestionIDs = copyStrings(act.QuestionIDs)
			acts = append(acts, act)
		}
	}
	sort.Slice(acts, func(i, j int) bool { return acts[i].CreatedAt.After(acts[j].CreatedAt) })
	return acts, nil
}

func (repo *activityRepository) UpdateStatus(_ context.Context, id string, from []activity.Status, to activity.Status, at time.Time) (activity.Activity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	act, ok := repo.db.activities[id]
	if !ok {
		return activity.Activity{}, activity.ErrNotFound
	}
	matched := false
	for _, st := range from {
		if act.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return activity.Activity{}, activity.ErrStale
	}
	act.Status = to
	act.UpdatedAt = at
	repo.db.activities[id] = act
	act.QuestionIDs = copyStrings(act.QuestionIDs)
	return act, nil
}

func (repo *activityRepository) UpdateQuestionIndex(_ context.Context, id string, from, to int, at time.Time) (activity.Activity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	act, ok := repo.db.activities[id]
	if !ok {
		return activity.Activity{}, activity.ErrNotFound
	}
	if act.CurrentQuestionIndex != from {
		return activity.Activity{}, activity.ErrStale
	}
	act.CurrentQuestionIndex = to
	act.UpdatedAt = at
	repo.db.activities[id] = act
	act.QuestionIDs = copyStrings(act.QuestionIDs)
	return act, nil
}

func (repo *activityRepository) DeleteActivity(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.activities[id]; !ok {
		return activity.ErrNotFound
	}
	repo.db.deleteActivity(id)
	return nil
}

// deleteActivity removes the activity and everything that hangs off it. The caller holds the lock.
func (db *DB) deleteActivity(id string) {
	delete(db.activities, id)
	for k, v := range db.rounds {
		if v.ActivityID == id {
			delete(db.rounds, k)
		}
	}
	for k, v := range db.groups {
		if v.ActivityID == id {
			delete(db.groups, k)
		}
	}
	for k, v := range db.messages {
		if v.ActivityID == id {
			delete(db.messages, k)
			delete(db.msgSeq, k)
		}
	}
	for k, v := range db.submissions {
		if v.ActivityID == id {
			delete(db.submissions, k)
		}
	}
	for k, v := range db.invitations {
		if v.ActivityID == id {
			delete(db.invitations, k)
		}
	}
	for k, v := range db.sessions {
		if v.ActivityID == id {
			delete(db.sessions, k)
		}
	}
}
