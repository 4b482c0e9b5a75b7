package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/guest"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	var out bytes.Buffer

	// start CLI
	return &commandLine{
		conf:       env.Conf,
		svcs:       env.Svcs,
		validate:   env.Validate,
		translator: env.Translator,
		out:        &out,
	}, env, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runTests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
				return
			}
			if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() succeeded; wantErr %v%s", tt.wantErr, tt.wantErrStr)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output = %q; want it to contain %q", out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	runTests(t, cli, out, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("usage not printed: %q", out.String())
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, out := setup(t)

	orig := gooseRunFunc
	defer func() { gooseRunFunc = orig }()
	gooseRunFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runTests(t, cli, out, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "rubrics", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	})
}

func Test_commandLine_migrate_memory(t *testing.T) {
	cli, _, _ := setup(t)

	if err := cli.run([]string{"admin", "migrate", "up"}); err == nil {
		t.Error("cli.run() migrated without a postgres database")
	}
}

func Test_commandLine_addProfile(t *testing.T) {
	cli, env, out := setup(t)

	runTests(t, cli, out, []cliTest{
		{name: "no args", args: []string{"addprofile"}, wantErr: errHelp},
		{name: "no name", args: []string{"addprofile", "-id", "u1", "-role", "teacher"}, wantErr: errHelp},
		{name: "teacher", args: []string{"addprofile", "-id", "u1", "-role", "Teacher", "-name", "Ms Teacher"}, wantOut: "profile u1 (teacher) saved"},
		{name: "rename", args: []string{"addprofile", "-id", "u1", "-role", "teacher", "-name", "Dr Teacher", "-ttl", "1h"}, wantOut: "token: "},
	})

	if err := cli.run([]string{"admin", "addprofile", "-id", "u2", "-role", "dean", "-name", "Dean"}); !core.IsValidationError(err) {
		t.Errorf("cli.run() error = %v; want a validation error", err)
	}

	prof, err := env.Svcs.Profiles.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Profiles.Get() failed: %v", err)
	}
	if prof.DisplayName != "Dr Teacher" || prof.Role != identity.RoleTeacher {
		t.Errorf("profile = %+v", prof)
	}
}

func Test_commandLine_autoGroup(t *testing.T) {
	cli, env, out := setup(t)
	room := testutil.NewClassroom(t, env)
	inv := testutil.CreateInvitation(t, env, room.Teacher, room.Activity.ID, guest.NewInvitation{})
	for _, number := range []string{"G-1", "G-2", "G-3", "G-4", "G-5"} {
		testutil.Join(t, env, inv, number, "Guest "+number)
	}

	runTests(t, cli, out, []cliTest{
		{name: "no activity", args: []string{"autogroup"}, wantErr: errHelp},
		{name: "unknown activity", args: []string{"autogroup", "-activity", "nope"}, wantErrStr: "getting activity: activity not found"},
		{name: "assign", args: []string{"autogroup", "-activity", room.Activity.ID, "-size", "3"}, wantOut: "Group 3: 2 members"},
		{name: "nobody left", args: []string{"autogroup", "-activity", room.Activity.ID}, wantOut: "no unassigned guests"},
	})

	groups, err := env.Svcs.Groups.List(context.Background(), room.Teacher.Identity(), room.Activity.ID)
	if err != nil {
		t.Fatalf("Groups.List() failed: %v", err)
	}
	if len(groups) != 3 {
		t.Errorf("got %d groups; want 3", len(groups))
	}
}

func Test_commandLine_purgeSessions(t *testing.T) {
	cli, env, out := setup(t)
	room := testutil.NewClassroom(t, env)
	inv := testutil.CreateInvitation(t, env, room.Teacher, room.Activity.ID, guest.NewInvitation{})
	testutil.Join(t, env, inv, "G-1", "Guest")

	runTests(t, cli, out, []cliTest{
		{name: "nothing expired", args: []string{"purgesessions"}, wantOut: "0 expired sessions deleted"},
	})

	orig := guest.NowFunc
	defer func() { guest.NowFunc = orig }()
	guest.NowFunc = func() time.Time { return orig().Add(env.Conf.Discussion.GuestSessionTTL + time.Minute) }

	runTests(t, cli, out, []cliTest{
		{name: "one expired", args: []string{"purgesessions"}, wantOut: "1 expired sessions deleted"},
	})
}
