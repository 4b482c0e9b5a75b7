package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/baraza/core/round"
)

type roundRepository struct {
	db *DB
}

var _ round.Repository = (*roundRepository)(nil) // interface compliance check

func NewRoundRepository(db *DB) *roundRepository {
	return &roundRepository{db: db}
}

func cloneRound(rnd round.Round) round.Round {
	if rnd.CompletedAt != nil {
		t := *rnd.CompletedAt
		rnd.CompletedAt = &t
	}
	return rnd
}

func (repo *roundRepository) OpenRound(_ context.Context, rnd round.Round) (round.Round, []round.Round, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if act, ok := repo.db.activities[rnd.ActivityID]; !ok || !act.IsRunning() {
		return round.Round{}, nil, round.ErrActivityNotRunning
	}
	var closed []round.Round
	for id, r := range repo.db.rounds {
		if r.ActivityID == rnd.ActivityID && r.QuestionID == rnd.QuestionID && r.IsOpen() {
			r.Close(rnd.StartedAt)
			repo.db.rounds[id] = r
			closed = append(closed, cloneRound(r))
		}
	}
	rnd.Status = round.StatusOpen
	rnd.CompletedAt = nil
	repo.db.rounds[rnd.ID] = rnd
	return rnd, closed, nil
}

func (repo *roundRepository) CloseRound(_ context.Context, id string, at time.Time) (round.Round, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rnd, ok := repo.db.rounds[id]
	if !ok {
		return round.Round{}, round.ErrNotFound
	}
	if !rnd.IsOpen() {
		return round.Round{}, round.ErrAlreadyEnded
	}
	rnd.Close(at)
	repo.db.rounds[id] = rnd
	return cloneRound(rnd), nil
}

func (repo *roundRepository) CloseActivityRounds(_ context.Context, activityID string, at time.Time) ([]round.Round, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var closed []round.Round
	for id, rnd := range repo.db.rounds {
		if rnd.ActivityID == activityID && rnd.IsOpen() {
			rnd.Close(at)
			repo.db.rounds[id] = rnd
			closed = append(closed, cloneRound(rnd))
		}
	}
	return closed, nil
}

func (repo *roundRepository) GetRound(_ context.Context, id string) (round.Round, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rnd, ok := repo.db.rounds[id]; ok {
		return cloneRound(rnd), nil
	}
	return round.Round{}, round.ErrNotFound
}

func (repo *roundRepository) GetOpenRound(_ context.Context, activityID, questionID string) (round.Round, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, rnd := range repo.db.rounds {
		if rnd.ActivityID == activityID && rnd.QuestionID == questionID && rnd.IsOpen() {
			return cloneRound(rnd), nil
		}
	}
	return round.Round{}, round.ErrNoOpenRound
}

func (repo *roundRepository) QueryRounds(_ context.Context, activityID, questionID string) ([]round.Round, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rounds := make([]round.Round, 0)
	for _, rnd := range repo.db.rounds {
		if rnd.ActivityID != activityID || (questionID != "" && rnd.QuestionID != questionID) {
			continue
		}
		rounds = append(rounds, cloneRound(rnd))
	}
	sort.Slice(rounds, func(i, j int) bool {
		if rounds[i].RoundNo != rounds[j].RoundNo {
			return rounds[i].RoundNo < rounds[j].RoundNo
		}
		if !rounds[i].StartedAt.Equal(rounds[j].StartedAt) {
			return rounds[i].StartedAt.Before(rounds[j].StartedAt)
		}
		return rounds[i].ID < rounds[j].ID
	})
	return rounds, nil
}
