// Package di wires repositories and services together for the apps and the tests.
package di

import (
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/group"
	"github.com/trezcool/baraza/core/guest"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/core/round"
	inmemdb "github.com/trezcool/baraza/storage/database/inmem"
	sqlxrepos "github.com/trezcool/baraza/storage/database/sqlx"
)

type (
	Repositories struct {
		Profiles    identity.Repository
		Courses     course.Repository
		Activities  activity.Repository
		Rounds      round.Repository
		Guests      guest.Repository
		Groups      group.Repository
		Discussions discussion.Repository
	}

	Services struct {
		Profiles    *identity.Service
		Courses     *course.Service
		Activities  *activity.Service
		Rounds      *round.Service
		Guests      *guest.Service
		Groups      *group.Service
		Discussions *discussion.Service
	}
)

// InmemRepositories backs every repository with the same in-memory store.
func InmemRepositories(db *inmemdb.DB) Repositories {
	return Repositories{
		Profiles:    inmemdb.NewProfileRepository(db),
		Courses:     inmemdb.NewCourseRepository(db),
		Activities:  inmemdb.NewActivityRepository(db),
		Rounds:      inmemdb.NewRoundRepository(db),
		Guests:      inmemdb.NewGuestRepository(db),
		Groups:      inmemdb.NewGroupRepository(db),
		Discussions: inmemdb.NewDiscussionRepository(db),
	}
}

func SqlxRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Profiles:    sqlxrepos.NewProfileRepository(db),
		Courses:     sqlxrepos.NewCourseRepository(db),
		Activities:  sqlxrepos.NewActivityRepository(db),
		Rounds:      sqlxrepos.NewRoundRepository(db),
		Guests:      sqlxrepos.NewGuestRepository(db),
		Groups:      sqlxrepos.NewGroupRepository(db),
		Discussions: sqlxrepos.NewDiscussionRepository(db),
	}
}

func NewServices(repos Repositories, conf *core.Config, notifier core.Notifier) *Services {
	profiles := identity.NewService(repos.Profiles)
	courses := course.NewService(repos.Courses)
	activities := activity.NewService(repos.Activities, courses, repos.Rounds, repos.Groups, notifier)
	return &Services{
		Profiles:   profiles,
		Courses:    courses,
		Activities: activities,
		Rounds:     round.NewService(repos.Rounds, activities, notifier),
		Guests:     guest.NewService(repos.Guests, activities, conf.SecretKey, conf.Discussion.GuestSessionTTL),
		Groups: group.NewService(
			repos.Groups,
			activities,
			repos.Rounds,
			repos.Profiles,
			notifier,
			conf.Discussion.FinalRationaleMinLen,
		),
		Discussions: discussion.NewService(
			repos.Discussions,
			repos.Rounds,
			repos.Groups,
			courses,
			activities,
			notifier,
		),
	}
}
