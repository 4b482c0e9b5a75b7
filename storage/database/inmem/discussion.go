package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/round"
)

type discussionRepository struct {
	db *DB
}

var _ discussion.Repository = (*discussionRepository)(nil) // interface compliance check

func NewDiscussionRepository(db *DB) *discussionRepository {
	return &discussionRepository{db: db}
}

func (repo *discussionRepository) CreateMessage(_ context.Context, msg discussion.Message) (discussion.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rnd, ok := repo.db.rounds[msg.RoundID]
	if !ok || !rnd.IsOpen() {
		return discussion.Message{}, round.ErrRoundClosed
	}
	for _, m := range repo.db.messages {
		if m.RoundID == msg.RoundID && m.AuthorID == msg.AuthorID {
			return discussion.Message{}, discussion.ErrDuplicate
		}
	}
	repo.db.seq++
	repo.db.msgSeq[msg.ID] = repo.db.seq
	repo.db.messages[msg.ID] = msg
	return msg, nil
}

func (repo *discussionRepository) GetMessage(_ context.Context, id string) (discussion.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if msg, ok := repo.db.messages[id]; ok {
		return msg, nil
	}
	return discussion.Message{}, discussion.ErrNotFound
}

func (repo *discussionRepository) GetAuthorMessage(_ context.Context, roundID, authorID string) (discussion.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, msg := range repo.db.messages {
		if msg.RoundID == roundID && msg.AuthorID == authorID {
			return msg, nil
		}
	}
	return discussion.Message{}, discussion.ErrNotFound
}

func (repo *discussionRepository) QueryMessages(_ context.Context, groupID, roundID string) ([]discussion.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	msgs := make([]discussion.Message, 0)
	for _, msg := range repo.db.messages {
		if msg.GroupID == groupID && msg.RoundID == roundID {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return repo.db.msgSeq[msgs[i].ID] < repo.db.msgSeq[msgs[j].ID]
	})
	return msgs, nil
}

func (repo *discussionRepository) UpsertChoice(_ context.Context, sub discussion.Submission) (discussion.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	open := false
	for _, rnd := range repo.db.rounds {
		if rnd.ActivityID == sub.ActivityID && rnd.QuestionID == sub.QuestionID && rnd.IsOpen() {
			open = true
			break
		}
	}
	if !open {
		return discussion.Submission{}, discussion.ErrNoOpenRound
	}

	for id, existing := range repo.db.submissions {
		if existing.ActivityID == sub.ActivityID && existing.QuestionID == sub.QuestionID &&
			existing.GroupID == sub.GroupID && existing.UserID == sub.UserID && existing.Type == sub.Type {
			existing.Choice = sub.Choice
			existing.Rationale = sub.Rationale
			existing.UpdatedAt = sub.UpdatedAt
			repo.db.submissions[id] = existing
			return existing, nil
		}
	}
	repo.db.submissions[sub.ID] = sub
	return sub, nil
}

func (repo *discussionRepository) QuerySubmissions(_ context.Context, groupID, questionID string) ([]discussion.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]discussion.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.GroupID == groupID && sub.QuestionID == questionID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Type != subs[j].Type {
			return subs[i].Type > subs[j].Type // individual_choice before final_choice
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs, nil
}
