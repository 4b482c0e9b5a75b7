// Package testutil builds a complete service graph over the in-memory store, with fixtures.
package testutil

import (
	"context"
	"fmt"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/baraza/apps/di"
	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/group"
	"github.com/trezcool/baraza/core/guest"
	"github.com/trezcool/baraza/core/identity"
	notifysvc "github.com/trezcool/baraza/services/notify"
	inmemdb "github.com/trezcool/baraza/storage/database/inmem"
)

// Rationale is long enough for any final answer.
const Rationale = "Because the loop runs once more than the array length, so the last access is out of bounds."

type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Repos      di.Repositories
	Svcs       *di.Services
	Notifier   *notifysvc.RecordingNotifier
	Validate   *validator.Validate
	Translator ut.Translator
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	repos := di.InmemRepositories(db)
	notifier := notifysvc.NewRecordingNotifier()
	validate, translator := core.NewValidator()
	return &Env{
		Conf:       conf,
		DB:         db,
		Repos:      repos,
		Svcs:       di.NewServices(repos, conf, notifier),
		Notifier:   notifier,
		Validate:   validate,
		Translator: translator,
	}
}

func CreateProfile(t *testing.T, env *Env, role identity.Role, name string) identity.Profile {
	t.Helper()
	np := identity.NewProfile{
		ID:          uuid.New().String(),
		Role:        string(role),
		DisplayName: name,
	}
	if role == identity.RoleStudent {
		np.StudentNumber = "S-" + np.ID[:8]
	}
	prof, err := env.Svcs.Profiles.Save(context.Background(), np)
	if err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	return prof
}

func CreateCourse(t *testing.T, env *Env, teacher identity.Profile) course.Course {
	t.Helper()
	crs, err := env.Svcs.Courses.CreateCourse(context.Background(), teacher.Identity(), course.NewCourse{Title: "Programming 101"})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateQuestion(t *testing.T, env *Env, teacher identity.Profile, courseID string, tags ...string) course.Question {
	t.Helper()
	nq := course.NewQuestion{
		Title:       "Off by one",
		Prompt:      "What does the loop print?",
		ConceptTags: tags,
		Choices: course.Choices{
			A: course.Choice{Text: "0 to 9"},
			B: course.Choice{Text: "0 to 10", IsCorrect: true},
			C: course.Choice{Text: "1 to 10"},
			D: course.Choice{Text: "Nothing"},
		},
	}
	q, err := env.Svcs.Courses.CreateQuestion(context.Background(), teacher.Identity(), courseID, nq)
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q
}

func CreateActivity(t *testing.T, env *Env, teacher identity.Profile, courseID string, questionIDs ...string) activity.Activity {
	t.Helper()
	act, err := env.Svcs.Activities.Create(context.Background(), teacher.Identity(), courseID, activity.NewActivity{
		Title:       "Week 3 peer discussion",
		QuestionIDs: questionIDs,
	})
	if err != nil {
		t.Fatalf("CreateActivity() failed: %v", err)
	}
	return act
}

func StartActivity(t *testing.T, env *Env, teacher identity.Profile, activityID string) activity.Activity {
	t.Helper()
	act, err := env.Svcs.Activities.Start(context.Background(), teacher.Identity(), activityID)
	if err != nil {
		t.Fatalf("StartActivity() failed: %v", err)
	}
	return act
}

// CreateGroup creates a group of permanent students; the first one leads.
func CreateGroup(t *testing.T, env *Env, teacher identity.Profile, activityID string, members ...identity.Profile) group.Group {
	t.Helper()
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	existing, _ := env.Repos.Groups.QueryGroups(context.Background(), activityID)
	grp, err := env.Svcs.Groups.Create(context.Background(), teacher.Identity(), activityID, group.NewGroup{
		Name:      fmt.Sprintf("Group %d", len(existing)+1),
		LeaderID:  ids[0],
		MemberIDs: ids,
	})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return grp
}

func CreateInvitation(t *testing.T, env *Env, teacher identity.Profile, activityID string, ni guest.NewInvitation) guest.Invitation {
	t.Helper()
	inv, err := env.Svcs.Guests.CreateInvitation(context.Background(), teacher.Identity(), activityID, ni)
	if err != nil {
		t.Fatalf("CreateInvitation() failed: %v", err)
	}
	return inv
}

func Join(t *testing.T, env *Env, inv guest.Invitation, number, name string) guest.Joined {
	t.Helper()
	joined, err := env.Svcs.Guests.Join(context.Background(), guest.JoinRequest{
		Token:         inv.Token,
		StudentNumber: number,
		DisplayName:   name,
	})
	if err != nil {
		t.Fatalf("Join() failed: %v", err)
	}
	return joined
}

// Classroom is a running activity on one question with a group of three permanent students.
type Classroom struct {
	Teacher  identity.Profile
	Course   course.Course
	Question course.Question
	Activity activity.Activity
	Group    group.Group
	Students []identity.Profile
}

// Leader returns the leading student of the group.
func (c Classroom) Leader() identity.Profile {
	return c.Students[0]
}

func NewClassroom(t *testing.T, env *Env, tags ...string) Classroom {
	t.Helper()
	teacher := CreateProfile(t, env, identity.RoleTeacher, "Ms Teacher")
	crs := CreateCourse(t, env, teacher)
	q := CreateQuestion(t, env, teacher, crs.ID, tags...)
	act := CreateActivity(t, env, teacher, crs.ID, q.ID)
	students := []identity.Profile{
		CreateProfile(t, env, identity.RoleStudent, "Amani"),
		CreateProfile(t, env, identity.RoleStudent, "Baraka"),
		CreateProfile(t, env, identity.RoleStudent, "Chiku"),
	}
	grp := CreateGroup(t, env, teacher, act.ID, students...)
	act = StartActivity(t, env, teacher, act.ID)
	return Classroom{
		Teacher:  teacher,
		Course:   crs,
		Question: q,
		Activity: act,
		Group:    grp,
		Students: students,
	}
}
