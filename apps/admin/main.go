package main

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/baraza/apps/di"
	"github.com/trezcool/baraza/core"
	logsvc "github.com/trezcool/baraza/services/logger"
	notifysvc "github.com/trezcool/baraza/services/notify"
	"github.com/trezcool/baraza/storage/database"
	inmemdb "github.com/trezcool/baraza/storage/database/inmem"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		panic(err)
	}
	logger, err := logsvc.NewZapLogger(conf)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// set up DB
	var (
		db    *sqlx.DB
		repos di.Repositories
	)
	if conf.Database.Engine == "memory" {
		repos = di.InmemRepositories(inmemdb.Open())
	} else {
		ctx := context.Background()
		if err = database.CreateIfNotExist(ctx, conf); err != nil {
			logger.Fatal("creating database", "error", err)
		}
		if db, err = database.Open(ctx, conf); err != nil {
			logger.Fatal("opening database", "error", err)
		}
		defer db.Close()
		repos = di.SqlxRepositories(db)
	}

	// start CLI
	validate, translator := core.NewValidator()
	cli := commandLine{
		conf:       conf,
		db:         db,
		svcs:       di.NewServices(repos, conf, notifysvc.NewConsoleNotifier(logger)),
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", "error", err)
		}
		_ = logger.Sync()
		os.Exit(1)
	}
}
