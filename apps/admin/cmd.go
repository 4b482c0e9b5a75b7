package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/baraza/apps/di"
	"github.com/trezcool/baraza/core"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf       *core.Config
	db         *sqlx.DB // nil with the memory engine
	svcs       *di.Services
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  addprofile -id ID -role ROLE -name NAME [-number NUMBER] [-ttl DURATION] - add or update a profile and print a token")
	fmt.Fprintln(cli.out, "  autogroup -activity ID [-size N] - put the unassigned guests of an activity into groups")
	fmt.Fprintln(cli.out, "  purgesessions - delete expired guest sessions")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addProfileCmd := flag.NewFlagSet("addprofile", flag.ExitOnError)
	addProfileID := addProfileCmd.String("id", "", "The account id given by the identity provider.")
	addProfileRole := addProfileCmd.String("role", "", "One of teacher, ta, student, admin.")
	addProfileName := addProfileCmd.String("name", "", "The display name.")
	addProfileNumber := addProfileCmd.String("number", "", "The student number, for students.")
	addProfileTTL := addProfileCmd.Duration("ttl", 24*time.Hour, "How long the printed token stays valid.")

	autoGroupCmd := flag.NewFlagSet("autogroup", flag.ExitOnError)
	autoGroupActivity := autoGroupCmd.String("activity", "", "The activity id.")
	autoGroupSize := autoGroupCmd.Int("size", cli.conf.Discussion.DefaultGroupSize, "The group size.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addprofile":
		if err := addProfileCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addProfileID == "" || *addProfileRole == "" || *addProfileName == "" {
			addProfileCmd.Usage()
			return errHelp
		}
		return cli.addProfile(*addProfileID, *addProfileRole, *addProfileName, *addProfileNumber, *addProfileTTL)
	case "autogroup":
		if err := autoGroupCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *autoGroupActivity == "" {
			autoGroupCmd.Usage()
			return errHelp
		}
		return cli.autoGroup(*autoGroupActivity, *autoGroupSize)
	case "purgesessions":
		return cli.purgeSessions()
	default:
		cli.printUsage()
		return errHelp
	}
}
