package discussion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/content"
	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/group"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/core/round"
)

var (
	ErrNotFound = core.NewNotFoundError("message")
	// ErrDuplicate is returned by Repository.CreateMessage when the author already posted in the round.
	ErrDuplicate = errors.New("message already exists")
	// ErrNoOpenRound is returned by Repository.UpsertChoice when no round of the question is open.
	ErrNoOpenRound = core.NewStateError("no round is open for this question")

	errRoundMismatch  = "round does not belong to this activity and question"
	errReplyRequired  = "this round requires a reply to a peer's message"
	errReplyNotInRoom = "reply_to must reference a message of your group on this question"
	errReplyToSelf    = "reply_to must reference a peer's message"
)

type (
	Repository interface {
		// CreateMessage inserts msg only while its round is open, as one atomic step.
		// It returns round.ErrRoundClosed when the round is not open and ErrDuplicate
		// when the author already posted in the round.
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		GetAuthorMessage(ctx context.Context, roundID, authorID string) (Message, error)
		// QueryMessages returns the messages of the group in the round in commit order.
		QueryMessages(ctx context.Context, groupID, roundID string) ([]Message, error)
		// UpsertChoice creates or replaces the individual choice of sub.UserID, only while a
		// round of the question is open. ErrNoOpenRound otherwise.
		UpsertChoice(ctx context.Context, sub Submission) (Submission, error)
		QuerySubmissions(ctx context.Context, groupID, questionID string) ([]Submission, error)
	}

	Service struct {
		repo       Repository
		rounds     round.Repository
		groups     group.Repository
		courses    *course.Service
		activities *activity.Service
		notifier   core.Notifier
	}
)

func NewService(
	repo Repository,
	rounds round.Repository,
	groups group.Repository,
	courses *course.Service,
	activities *activity.Service,
	notifier core.Notifier,
) *Service {
	return &Service{
		repo:       repo,
		rounds:     rounds,
		groups:     groups,
		courses:    courses,
		activities: activities,
		notifier:   notifier,
	}
}

// scopedGroup returns the group when the caller is a student allowed to act in it.
func (svc *Service) scopedGroup(ctx context.Context, caller identity.Identity, activityID, groupID string) (group.Group, error) {
	if caller == nil {
		return group.Group{}, core.ErrUnauthenticated
	}
	if !caller.IsStudent() {
		return group.Group{}, core.ErrUnauthorized
	}
	grp, err := svc.groups.GetGroup(ctx, groupID)
	if err != nil {
		if err == group.ErrNotFound {
			return group.Group{}, core.ErrUnauthorized
		}
		return group.Group{}, errors.Wrap(err, "getting group")
	}
	if grp.ActivityID != activityID || !grp.InScope(caller) {
		return group.Group{}, core.ErrUnauthorized
	}
	return grp, nil
}

// SubmitMessage accepts a student's message into an open round.
// Checks run in order: identity, group scope, round state, content, reply rule; the
// write itself re-checks that the round is still open.
func (svc *Service) SubmitMessage(ctx context.Context, caller identity.Identity, nm NewMessage) (Message, error) {
	if _, err := svc.scopedGroup(ctx, caller, nm.ActivityID, nm.GroupID); err != nil {
		return Message{}, err
	}

	rnd, err := svc.rounds.GetRound(ctx, nm.RoundID)
	if err != nil {
		if err == round.ErrNotFound {
			return Message{}, round.ErrRoundClosed
		}
		return Message{}, errors.Wrap(err, "getting round")
	}
	if rnd.ActivityID != nm.ActivityID || rnd.QuestionID != nm.QuestionID {
		return Message{}, core.NewValidationError(nil, core.FieldError{Field: "round_id", Error: errRoundMismatch})
	}
	if !rnd.IsOpen() {
		return Message{}, round.ErrRoundClosed
	}

	q, err := svc.courses.GetQuestion(ctx, nm.QuestionID)
	if err != nil {
		return Message{}, errors.Wrap(err, "getting question")
	}
	verdict := content.Validate(nm.Content, rnd.Rules.MinLenOrDefault(), q.ConceptTags)
	if !verdict.Accepted {
		return Message{}, core.NewValidationError(errors.New(verdict.Reason), core.FieldError{Field: "content", Error: verdict.Reason})
	}

	if err = svc.checkReply(ctx, caller, rnd, nm); err != nil {
		return Message{}, err
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		ID:          uuid.New().String(),
		ActivityID:  nm.ActivityID,
		QuestionID:  nm.QuestionID,
		RoundID:     nm.RoundID,
		GroupID:     nm.GroupID,
		AuthorID:    caller.Subject(),
		AuthorName:  displayName(caller),
		Content:     core.CleanString(nm.Content),
		ReplyTo:     nm.ReplyTo,
		Diagnostics: verdict.Diagnostics,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		switch err {
		case round.ErrRoundClosed:
			return Message{}, err
		case ErrDuplicate:
			existing, gErr := svc.repo.GetAuthorMessage(ctx, nm.RoundID, caller.Subject())
			if gErr != nil {
				return Message{}, errors.Wrap(gErr, "getting existing message")
			}
			return Message{}, core.NewConflictError("you have already posted in this round", existing)
		}
		return Message{}, errors.Wrap(err, "creating message")
	}

	svc.notifier.Notify(ctx, core.Event{
		Type:       core.EventMessageCreated,
		ActivityID: msg.ActivityID,
		QuestionID: msg.QuestionID,
		GroupID:    msg.GroupID,
		RoundID:    msg.RoundID,
		MessageID:  msg.ID,
		At:         msg.CreatedAt,
	})
	return msg, nil
}

func (svc *Service) checkReply(ctx context.Context, caller identity.Identity, rnd round.Round, nm NewMessage) error {
	if nm.ReplyTo == "" {
		if rnd.Rules.RequireReplyToPeer {
			return core.NewValidationError(nil, core.FieldError{Field: "reply_to", Error: errReplyRequired})
		}
		return nil
	}
	parent, err := svc.repo.GetMessage(ctx, nm.ReplyTo)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "reply_to", Error: errReplyNotInRoom})
		}
		return errors.Wrap(err, "getting replied message")
	}
	if parent.GroupID != nm.GroupID || parent.QuestionID != nm.QuestionID {
		return core.NewValidationError(nil, core.FieldError{Field: "reply_to", Error: errReplyNotInRoom})
	}
	if parent.AuthorID == caller.Subject() {
		return core.NewValidationError(nil, core.FieldError{Field: "reply_to", Error: errReplyToSelf})
	}
	return nil
}

// SubmitIndividualChoice records or replaces the caller's own answer while a round of the question is open.
func (svc *Service) SubmitIndividualChoice(ctx context.Context, caller identity.Identity, nc NewChoice) (Submission, error) {
	if _, err := svc.scopedGroup(ctx, caller, nc.ActivityID, nc.GroupID); err != nil {
		return Submission{}, err
	}
	choice := course.ChoiceKey(nc.Choice)
	if !choice.Valid() {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "choice", Error: "must be one of A, B, C or D"})
	}

	now := time.Now().UTC()
	sub, err := svc.repo.UpsertChoice(ctx, Submission{
		ID:         uuid.New().String(),
		ActivityID: nc.ActivityID,
		QuestionID: nc.QuestionID,
		GroupID:    nc.GroupID,
		UserID:     caller.Subject(),
		Type:       TypeIndividualChoice,
		Choice:     choice,
		Rationale:  core.CleanString(nc.Rationale),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if err == ErrNoOpenRound {
			return Submission{}, err
		}
		return Submission{}, errors.Wrap(err, "saving choice")
	}
	svc.notifier.Notify(ctx, core.Event{
		Type:       core.EventChoiceSubmitted,
		ActivityID: sub.ActivityID,
		QuestionID: sub.QuestionID,
		GroupID:    sub.GroupID,
		At:         now,
	})
	return sub, nil
}

// GetCurrentRound returns the open round of the question, or round.ErrNoOpenRound.
// Guests may only look into their own activity.
func (svc *Service) GetCurrentRound(ctx context.Context, caller identity.Identity, activityID, questionID string) (round.Round, error) {
	if err := svc.authorizeActivity(ctx, caller, activityID); err != nil {
		return round.Round{}, err
	}
	rnd, err := svc.rounds.GetOpenRound(ctx, activityID, questionID)
	if err != nil {
		if err == round.ErrNoOpenRound {
			return round.Round{}, err
		}
		return round.Round{}, errors.Wrap(err, "getting open round")
	}
	return rnd, nil
}

// GetGroupMessages returns the group's messages of a round, oldest first,
// to members of the group and to the owner of the activity.
func (svc *Service) GetGroupMessages(ctx context.Context, caller identity.Identity, groupID, roundID string) ([]Message, error) {
	if caller == nil {
		return nil, core.ErrUnauthenticated
	}
	grp, err := svc.groups.GetGroup(ctx, groupID)
	if err != nil {
		if err == group.ErrNotFound {
			return nil, core.ErrUnauthorized
		}
		return nil, errors.Wrap(err, "getting group")
	}
	if caller.IsStudent() {
		if !grp.InScope(caller) {
			return nil, core.ErrUnauthorized
		}
	} else if err = svc.activities.AuthorizeOwner(ctx, caller, grp.ActivityID); err != nil {
		return nil, err
	}

	rnd, err := svc.rounds.GetRound(ctx, roundID)
	if err != nil {
		if err == round.ErrNotFound {
			return nil, err
		}
		return nil, errors.Wrap(err, "getting round")
	}
	if rnd.ActivityID != grp.ActivityID {
		return nil, core.ErrUnauthorized
	}
	msgs, err := svc.repo.QueryMessages(ctx, groupID, roundID)
	return msgs, errors.Wrap(err, "querying messages")
}

// GetGroupChoices returns the individual and final choices of the group on a question.
func (svc *Service) GetGroupChoices(ctx context.Context, caller identity.Identity, groupID, questionID string) ([]Submission, error) {
	if caller == nil {
		return nil, core.ErrUnauthenticated
	}
	grp, err := svc.groups.GetGroup(ctx, groupID)
	if err != nil {
		if err == group.ErrNotFound {
			return nil, core.ErrUnauthorized
		}
		return nil, errors.Wrap(err, "getting group")
	}
	if caller.IsStudent() {
		if !grp.InScope(caller) {
			return nil, core.ErrUnauthorized
		}
	} else if err = svc.activities.AuthorizeOwner(ctx, caller, grp.ActivityID); err != nil {
		return nil, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, groupID, questionID)
	return subs, errors.Wrap(err, "querying submissions")
}

// Preview returns the verdict content would get in the round, without storing anything.
func (svc *Service) Preview(ctx context.Context, caller identity.Identity, p Preview) (content.Verdict, error) {
	if caller == nil {
		return content.Verdict{}, core.ErrUnauthenticated
	}
	rnd, err := svc.rounds.GetRound(ctx, p.RoundID)
	if err != nil {
		if err == round.ErrNotFound {
			return content.Verdict{}, round.ErrRoundClosed
		}
		return content.Verdict{}, errors.Wrap(err, "getting round")
	}
	if err = svc.authorizeActivity(ctx, caller, rnd.ActivityID); err != nil {
		return content.Verdict{}, err
	}
	q, err := svc.courses.GetQuestion(ctx, rnd.QuestionID)
	if err != nil {
		return content.Verdict{}, errors.Wrap(err, "getting question")
	}
	return content.Validate(p.Content, rnd.Rules.MinLenOrDefault(), q.ConceptTags), nil
}

func (svc *Service) authorizeActivity(ctx context.Context, caller identity.Identity, activityID string) error {
	_, err := svc.activities.View(ctx, caller, activityID)
	return err
}

func displayName(caller identity.Identity) string {
	switch c := caller.(type) {
	case identity.Permanent:
		return c.DisplayName
	case identity.Temporary:
		return c.DisplayName
	}
	return ""
}
