package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/core/round"
)

var (
	ErrNotFound = core.NewNotFoundError("activity")
	// ErrStale is returned by conditional updates whose expected state no longer holds.
	ErrStale = errors.New("activity state changed")

	errNoQuestions     = errors.New("at least one question is required")
	errForeignQuestion = errors.New("question does not belong to this course")
)

type (
	Repository interface {
		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		GetActivity(ctx context.Context, id string) (Activity, error)
		QueryActivities(ctx context.Context, courseID string) ([]Activity, error)
		// UpdateStatus moves the activity to `to` only if its status is one of `from`; ErrStale otherwise.
		UpdateStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (Activity, error)
		// UpdateQuestionIndex moves the cursor only if it still points at `from`; ErrStale otherwise.
		UpdateQuestionIndex(ctx context.Context, id string, from, to int, at time.Time) (Activity, error)
		// DeleteActivity removes the activity with its invitations, sessions, groups, rounds, messages and submissions.
		DeleteActivity(ctx context.Context, id string) error
	}

	// Roster tells whether a student holds a seat in one of the activity's groups.
	Roster interface {
		IsSeated(ctx context.Context, activityID, userID string) (bool, error)
	}

	Service struct {
		repo     Repository
		courses  *course.Service
		rounds   round.Repository
		roster   Roster
		notifier core.Notifier
	}
)

var _ round.ActivityGate = (*Service)(nil) // interface compliance check

func NewService(repo Repository, courses *course.Service, rounds round.Repository, roster Roster, notifier core.Notifier) *Service {
	return &Service{repo: repo, courses: courses, rounds: rounds, roster: roster, notifier: notifier}
}

func (svc *Service) Create(ctx context.Context, caller identity.Identity, courseID string, na NewActivity) (Activity, error) {
	staffID, ok := identity.StaffID(caller)
	if !ok {
		return Activity{}, core.ErrUnauthorized
	}
	if _, err := svc.courses.Authorize(ctx, caller, courseID); err != nil {
		return Activity{}, err
	}
	if len(na.QuestionIDs) == 0 {
		return Activity{}, core.NewValidationError(errNoQuestions, core.FieldError{Field: "question_ids", Error: errNoQuestions.Error()})
	}
	for _, qid := range na.QuestionIDs {
		q, err := svc.courses.GetQuestion(ctx, qid)
		if err != nil && err != course.ErrQuestionNotFound {
			return Activity{}, errors.Wrap(err, "getting question")
		}
		if err != nil || q.CourseID != courseID {
			return Activity{}, core.NewValidationError(errForeignQuestion, core.FieldError{Field: "question_ids", Error: errForeignQuestion.Error()})
		}
	}

	now := time.Now().UTC()
	act, err := svc.repo.CreateActivity(ctx, Activity{
		ID:          uuid.New().String(),
		CourseID:    courseID,
		Title:       na.Title,
		Description: na.Description,
		Status:      StatusDraft,
		QuestionIDs: na.QuestionIDs,
		CreatedBy:   staffID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return act, errors.Wrap(err, "creating activity")
}

func (svc *Service) Get(ctx context.Context, id string) (Activity, error) {
	return svc.repo.GetActivity(ctx, id)
}

// Authorize returns the activity when the caller owns its course.
// A missing activity is reported as core.ErrUnauthorized.
func (svc *Service) Authorize(ctx context.Context, caller identity.Identity, id string) (Activity, error) {
	if _, ok := identity.StaffID(caller); !ok {
		return Activity{}, core.ErrUnauthorized
	}
	act, err := svc.repo.GetActivity(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Activity{}, core.ErrUnauthorized
		}
		return Activity{}, errors.Wrap(err, "getting activity")
	}
	if _, err = svc.courses.Authorize(ctx, caller, act.CourseID); err != nil {
		return Activity{}, err
	}
	return act, nil
}

// View returns the activity to its owner and to the students seated in one of its groups.
// Guests only see the activity their session belongs to.
func (svc *Service) View(ctx context.Context, caller identity.Identity, id string) (Activity, error) {
	switch c := caller.(type) {
	case nil:
		return Activity{}, core.ErrUnauthenticated
	case identity.Temporary:
		if c.ActivityID != id {
			return Activity{}, core.ErrUnauthorized
		}
	case identity.Permanent:
		if !c.IsStudent() {
			return svc.Authorize(ctx, caller, id)
		}
	default:
		return Activity{}, core.ErrUnauthorized
	}
	act, err := svc.repo.GetActivity(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Activity{}, core.ErrUnauthorized
		}
		return Activity{}, errors.Wrap(err, "getting activity")
	}
	if _, ok := caller.(identity.Permanent); ok {
		seated, err := svc.roster.IsSeated(ctx, id, caller.Subject())
		if err != nil {
			return Activity{}, errors.Wrap(err, "checking roster")
		}
		if !seated {
			return Activity{}, core.ErrUnauthorized
		}
	}
	return act, nil
}

func (svc *Service) AuthorizeOwner(ctx context.Context, caller identity.Identity, id string) error {
	_, err := svc.Authorize(ctx, caller, id)
	return err
}

func (svc *Service) CheckRunningQuestion(ctx context.Context, id, questionID string) error {
	act, err := svc.repo.GetActivity(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting activity")
	}
	if !act.IsRunning() {
		return core.NewStateError("activity is not running")
	}
	if !act.HasQuestion(questionID) {
		return core.NewStateError("question is not part of this activity")
	}
	return nil
}

func (svc *Service) List(ctx context.Context, caller identity.Identity, courseID string) ([]Activity, error) {
	if _, err := svc.courses.Authorize(ctx, caller, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryActivities(ctx, courseID)
}

// Start moves a draft activity to running and opens round 1 of its current question.
func (svc *Service) Start(ctx context.Context, caller identity.Identity, id string) (Activity, error) {
	act, err := svc.Authorize(ctx, caller, id)
	if err != nil {
		return Activity{}, err
	}
	switch act.Status {
	case StatusRunning:
		return Activity{}, core.NewStateError("activity is already running")
	case StatusEnded:
		return Activity{}, core.NewStateError("activity has ended")
	}

	now := time.Now().UTC()
	act, err = svc.repo.UpdateStatus(ctx, id, []Status{StatusDraft}, StatusRunning, now)
	if err != nil {
		if err == ErrStale {
			return Activity{}, core.NewStateError("activity is already running")
		}
		return Activity{}, errors.Wrap(err, "starting activity")
	}
	svc.notify(ctx, core.EventActivityStarted, act, "", now)

	if err = svc.openFirstRound(ctx, act, now); err != nil {
		return Activity{}, err
	}
	return act, nil
}

// End moves the activity to ended and closes all its open rounds.
func (svc *Service) End(ctx context.Context, caller identity.Identity, id string) (Activity, error) {
	act, err := svc.Authorize(ctx, caller, id)
	if err != nil {
		return Activity{}, err
	}
	if act.Status == StatusEnded {
		return Activity{}, core.NewStateError("activity has ended")
	}

	now := time.Now().UTC()
	act, err = svc.repo.UpdateStatus(ctx, id, []Status{StatusDraft, StatusRunning}, StatusEnded, now)
	if err != nil {
		if err == ErrStale {
			return Activity{}, core.NewStateError("activity has ended")
		}
		return Activity{}, errors.Wrap(err, "ending activity")
	}
	closed, err := svc.rounds.CloseActivityRounds(ctx, id, now)
	if err != nil {
		return Activity{}, errors.Wrap(err, "closing rounds")
	}
	for _, rnd := range closed {
		svc.notifier.Notify(ctx, core.Event{Type: core.EventRoundEnded, ActivityID: id, QuestionID: rnd.QuestionID, RoundID: rnd.ID, At: now})
	}
	svc.notify(ctx, core.EventActivityEnded, act, "", now)
	return act, nil
}

// Advance moves a running activity to its next question, closing the rounds of the
// current one and opening round 1 of the next.
func (svc *Service) Advance(ctx context.Context, caller identity.Identity, id string) (Activity, error) {
	act, err := svc.Authorize(ctx, caller, id)
	if err != nil {
		return Activity{}, err
	}
	if !act.IsRunning() {
		return Activity{}, core.NewStateError("activity is not running")
	}
	next := act.CurrentQuestionIndex + 1
	if next >= len(act.QuestionIDs) {
		return Activity{}, core.NewStateError("activity has no next question")
	}

	now := time.Now().UTC()
	act, err = svc.repo.UpdateQuestionIndex(ctx, id, act.CurrentQuestionIndex, next, now)
	if err != nil {
		if err == ErrStale {
			return Activity{}, core.NewStateError("activity has already advanced")
		}
		return Activity{}, errors.Wrap(err, "advancing activity")
	}
	closed, err := svc.rounds.CloseActivityRounds(ctx, id, now)
	if err != nil {
		return Activity{}, errors.Wrap(err, "closing rounds")
	}
	for _, rnd := range closed {
		svc.notifier.Notify(ctx, core.Event{Type: core.EventRoundEnded, ActivityID: id, QuestionID: rnd.QuestionID, RoundID: rnd.ID, At: now})
	}
	svc.notify(ctx, core.EventActivityAdvanced, act, act.CurrentQuestionID(), now)

	if err = svc.openFirstRound(ctx, act, now); err != nil {
		return Activity{}, err
	}
	return act, nil
}

func (svc *Service) Delete(ctx context.Context, caller identity.Identity, id string) error {
	if _, err := svc.Authorize(ctx, caller, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteActivity(ctx, id), "deleting activity")
}

func (svc *Service) openFirstRound(ctx context.Context, act Activity, now time.Time) error {
	opened, _, err := svc.rounds.OpenRound(ctx, round.New(act.ID, act.CurrentQuestionID(), 1, now))
	if err != nil {
		return errors.Wrap(err, "opening first round")
	}
	svc.notifier.Notify(ctx, core.Event{
		Type:       core.EventRoundStarted,
		ActivityID: act.ID,
		QuestionID: opened.QuestionID,
		RoundID:    opened.ID,
		At:         now,
	})
	return nil
}

func (svc *Service) notify(ctx context.Context, typ core.EventType, act Activity, questionID string, at time.Time) {
	svc.notifier.Notify(ctx, core.Event{Type: typ, ActivityID: act.ID, QuestionID: questionID, At: at})
}
