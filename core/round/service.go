package round

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/identity"
)

var (
	ErrNotFound     = core.NewNotFoundError("round")
	ErrNoOpenRound  = core.NewNotFoundError("open round")
	ErrRoundClosed  = core.NewStateError("This round is not open for submissions")
	ErrAlreadyEnded = core.NewStateError("round is already closed")
	// ErrActivityNotRunning is returned by Repository.OpenRound when the activity is not running.
	ErrActivityNotRunning = core.NewStateError("activity is not running")
)

type (
	Repository interface {
		// OpenRound closes every open round of the same activity and question, then inserts rnd,
		// as one atomic step. The rounds it closed are returned. It fails with
		// ErrActivityNotRunning, opening nothing, unless the activity is running.
		OpenRound(ctx context.Context, rnd Round) (opened Round, closed []Round, err error)
		// CloseRound closes the round if it is open. ErrAlreadyEnded is returned otherwise.
		CloseRound(ctx context.Context, id string, at time.Time) (Round, error)
		// CloseActivityRounds closes every open round of the activity.
		CloseActivityRounds(ctx context.Context, activityID string, at time.Time) ([]Round, error)
		GetRound(ctx context.Context, id string) (Round, error)
		// GetOpenRound returns ErrNoOpenRound when no round of the question is open.
		GetOpenRound(ctx context.Context, activityID, questionID string) (Round, error)
		// QueryRounds returns the rounds ordered by round number then start time.
		// An empty questionID returns the rounds of every question.
		QueryRounds(ctx context.Context, activityID, questionID string) ([]Round, error)
	}

	// ActivityGate answers the questions a round needs about its activity.
	ActivityGate interface {
		// AuthorizeOwner fails with core.ErrUnauthorized unless the caller owns the activity.
		AuthorizeOwner(ctx context.Context, caller identity.Identity, activityID string) error
		// CheckRunningQuestion fails with a state error unless the activity is running and the question belongs to it.
		CheckRunningQuestion(ctx context.Context, activityID, questionID string) error
	}

	Service struct {
		repo       Repository
		activities ActivityGate
		notifier   core.Notifier
	}
)

// New builds a round opening now with the default rules of its number.
func New(activityID, questionID string, roundNo int, now time.Time) Round {
	return Round{
		ID:         uuid.New().String(),
		ActivityID: activityID,
		QuestionID: questionID,
		RoundNo:    roundNo,
		Status:     StatusOpen,
		Rules:      DefaultRules(roundNo),
		StartedAt:  now,
	}
}

func NewService(repo Repository, activities ActivityGate, notifier core.Notifier) *Service {
	return &Service{repo: repo, activities: activities, notifier: notifier}
}

// Start opens round roundNo of the question, closing whichever round of the question was open.
func (svc *Service) Start(ctx context.Context, caller identity.Identity, activityID string, nr NewRound) (Round, error) {
	if err := svc.activities.AuthorizeOwner(ctx, caller, activityID); err != nil {
		return Round{}, err
	}
	if err := svc.activities.CheckRunningQuestion(ctx, activityID, nr.QuestionID); err != nil {
		return Round{}, err
	}

	opened, closed, err := svc.repo.OpenRound(ctx, New(activityID, nr.QuestionID, nr.RoundNo, time.Now().UTC()))
	if err != nil {
		if err == ErrActivityNotRunning {
			return Round{}, err
		}
		return Round{}, errors.Wrap(err, "opening round")
	}
	for _, rnd := range closed {
		svc.notify(ctx, core.EventRoundEnded, rnd)
	}
	svc.notify(ctx, core.EventRoundStarted, opened)
	return opened, nil
}

// End closes the round. Closing a round that is not open is a state error.
func (svc *Service) End(ctx context.Context, caller identity.Identity, roundID string) (Round, error) {
	rnd, err := svc.repo.GetRound(ctx, roundID)
	if err != nil {
		if err == ErrNotFound {
			return Round{}, core.ErrUnauthorized
		}
		return Round{}, errors.Wrap(err, "getting round")
	}
	if err = svc.activities.AuthorizeOwner(ctx, caller, rnd.ActivityID); err != nil {
		return Round{}, err
	}

	rnd, err = svc.repo.CloseRound(ctx, roundID, time.Now().UTC())
	if err != nil {
		if err == ErrAlreadyEnded {
			return Round{}, err
		}
		return Round{}, errors.Wrap(err, "closing round")
	}
	svc.notify(ctx, core.EventRoundEnded, rnd)
	return rnd, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Round, error) {
	return svc.repo.GetRound(ctx, id)
}

// GetOpen returns the open round of the question, or ErrNoOpenRound.
func (svc *Service) GetOpen(ctx context.Context, activityID, questionID string) (Round, error) {
	return svc.repo.GetOpenRound(ctx, activityID, questionID)
}

// List returns the rounds of the activity in round number order.
func (svc *Service) List(ctx context.Context, caller identity.Identity, activityID, questionID string) ([]Round, error) {
	if err := svc.activities.AuthorizeOwner(ctx, caller, activityID); err != nil {
		return nil, err
	}
	rounds, err := svc.repo.QueryRounds(ctx, activityID, questionID)
	return rounds, errors.Wrap(err, "querying rounds")
}

func (svc *Service) notify(ctx context.Context, typ core.EventType, rnd Round) {
	at := rnd.StartedAt
	if rnd.CompletedAt != nil {
		at = *rnd.CompletedAt
	}
	svc.notifier.Notify(ctx, core.Event{
		Type:       typ,
		ActivityID: rnd.ActivityID,
		QuestionID: rnd.QuestionID,
		RoundID:    rnd.ID,
		At:         at,
	})
}
