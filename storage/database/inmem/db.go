// Package inmemdb keeps every table in memory behind a single lock.
// Each repository method holds the lock for its whole duration, which gives the
// same atomicity the postgres repositories get from transactions and constraints.
package inmemdb

import (
	"sync"

	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/group"
	"github.com/trezcool/baraza/core/guest"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/core/round"
)

type DB struct {
	mutex sync.RWMutex

	profiles    map[string]identity.Profile
	courses     map[string]course.Course
	questions   map[string]course.Question
	activities  map[string]activity.Activity
	rounds      map[string]round.Round
	groups      map[string]group.Group
	messages    map[string]discussion.Message
	submissions map[string]discussion.Submission
	invitations map[string]guest.Invitation
	sessions    map[string]guest.Session

	seq    int64 // commit order of messages
	msgSeq map[string]int64
}

func Open() *DB {
	return &DB{
		profiles:    make(map[string]identity.Profile),
		courses:     make(map[string]course.Course),
		questions:   make(map[string]course.Question),
		activities:  make(map[string]activity.Activity),
		rounds:      make(map[string]round.Round),
		groups:      make(map[string]group.Group),
		messages:    make(map[string]discussion.Message),
		submissions: make(map[string]discussion.Submission),
		invitations: make(map[string]guest.Invitation),
		sessions:    make(map[string]guest.Session),
		msgSeq:      make(map[string]int64),
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
