package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/identity"
)

var (
	ErrNotFound         = core.NewNotFoundError("course")
	ErrQuestionNotFound = core.NewNotFoundError("question")
	// ErrQuestionInUse is returned by Repository.DeleteQuestion when an activity asks the question.
	ErrQuestionInUse = core.NewStateError("question is used by an activity")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// QueryCourses returns the courses of the teacher, newest first.
		QueryCourses(ctx context.Context, teacherID string) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		// DeleteCourse removes the course with its questions and activities.
		DeleteCourse(ctx context.Context, id string) error
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		QueryQuestions(ctx context.Context, courseID string) ([]Question, error)
		DeleteQuestion(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateCourse(ctx context.Context, caller identity.Identity, nc NewCourse) (Course, error) {
	staffID, ok := identity.StaffID(caller)
	if !ok {
		return Course{}, core.ErrUnauthorized
	}
	crs, err := svc.repo.CreateCourse(ctx, Course{
		ID:          uuid.New().String(),
		TeacherID:   staffID,
		Title:       nc.Title,
		Description: nc.Description,
		CreatedAt:   time.Now().UTC(),
	})
	return crs, errors.Wrap(err, "creating course")
}

func (svc *Service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// ListCourses returns the courses the caller teaches, newest first.
func (svc *Service) ListCourses(ctx context.Context, caller identity.Identity) ([]Course, error) {
	staffID, ok := identity.StaffID(caller)
	if !ok {
		return nil, core.ErrUnauthorized
	}
	crss, err := svc.repo.QueryCourses(ctx, staffID)
	return crss, errors.Wrap(err, "querying courses")
}

func (svc *Service) UpdateCourse(ctx context.Context, caller identity.Identity, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.Authorize(ctx, caller, id)
	if err != nil {
		return Course{}, err
	}
	crs.Title = uc.Title
	crs.Description = uc.Description
	crs, err = svc.repo.UpdateCourse(ctx, crs)
	return crs, errors.Wrap(err, "updating course")
}

// DeleteCourse removes the course together with its questions and activities.
func (svc *Service) DeleteCourse(ctx context.Context, caller identity.Identity, id string) error {
	if _, err := svc.Authorize(ctx, caller, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, id), "deleting course")
}

// Authorize returns the course when the caller owns it.
func (svc *Service) Authorize(ctx context.Context, caller identity.Identity, courseID string) (Course, error) {
	staffID, ok := identity.StaffID(caller)
	if !ok {
		return Course{}, core.ErrUnauthorized
	}
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		if err == ErrNotFound {
			return Course{}, core.ErrUnauthorized
		}
		return Course{}, errors.Wrap(err, "getting course")
	}
	if crs.TeacherID != staffID {
		return Course{}, core.ErrUnauthorized
	}
	return crs, nil
}

func (svc *Service) CreateQuestion(ctx context.Context, caller identity.Identity, courseID string, nq NewQuestion) (Question, error) {
	if _, err := svc.Authorize(ctx, caller, courseID); err != nil {
		return Question{}, err
	}
	if err := nq.Choices.Check(); err != nil {
		return Question{}, err
	}
	now := time.Now().UTC()
	q, err := svc.repo.CreateQuestion(ctx, Question{
		ID:          uuid.New().String(),
		CourseID:    courseID,
		Title:       nq.Title,
		Prompt:      nq.Prompt,
		Context:     nq.Context,
		ConceptTags: core.CleanTags(nq.ConceptTags),
		Choices:     nq.Choices,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return q, errors.Wrap(err, "creating question")
}

func (svc *Service) UpdateQuestion(ctx context.Context, caller identity.Identity, id string, uq UpdateQuestion) (Question, error) {
	q, err := svc.repo.GetQuestion(ctx, id)
	if err != nil {
		if err == ErrQuestionNotFound {
			return Question{}, core.ErrUnauthorized
		}
		return Question{}, errors.Wrap(err, "getting question")
	}
	if _, err = svc.Authorize(ctx, caller, q.CourseID); err != nil {
		return Question{}, err
	}
	if err = uq.Choices.Check(); err != nil {
		return Question{}, err
	}

	q.Title = uq.Title
	q.Prompt = uq.Prompt
	q.Context = uq.Context
	q.ConceptTags = core.CleanTags(uq.ConceptTags)
	q.Choices = uq.Choices
	q.UpdatedAt = time.Now().UTC()
	q, err = svc.repo.UpdateQuestion(ctx, q)
	return q, errors.Wrap(err, "updating question")
}

// DeleteQuestion removes a question that no activity asks.
func (svc *Service) DeleteQuestion(ctx context.Context, caller identity.Identity, id string) error {
	q, err := svc.repo.GetQuestion(ctx, id)
	if err != nil {
		if err == ErrQuestionNotFound {
			return core.ErrUnauthorized
		}
		return errors.Wrap(err, "getting question")
	}
	if _, err = svc.Authorize(ctx, caller, q.CourseID); err != nil {
		return err
	}
	if err = svc.repo.DeleteQuestion(ctx, id); err != nil {
		if err == ErrQuestionInUse {
			return err
		}
		return errors.Wrap(err, "deleting question")
	}
	return nil
}

func (svc *Service) GetQuestion(ctx context.Context, id string) (Question, error) {
	return svc.repo.GetQuestion(ctx, id)
}

func (svc *Service) ListQuestions(ctx context.Context, caller identity.Identity, courseID string) ([]Question, error) {
	if _, err := svc.Authorize(ctx, caller, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryQuestions(ctx, courseID)
}
