package main

import (
	"context"
	"expvar"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	echoapi "github.com/trezcool/baraza/apps/api/echo"
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

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		panic(err)
	}
	defer func() { _ = zl.Sync() }()

	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	if err = run(conf, logger); err != nil {
		logger.Fatal("application stopped", "error", err)
	}
}

func run(conf *core.Config, logger core.Logger) error {
	// =========================================================================
	// Set up Dependencies

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeDB, err := setUpRepositories(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if cErr := closeDB(); cErr != nil {
			logger.Error("closing database", "error", cErr)
		}
	}()

	notifier, closeNotifier, err := setUpNotifier(ctx, conf, logger)
	if err != nil {
		return errors.Wrap(err, "setting up notifier")
	}
	defer closeNotifier()

	svcs := di.NewServices(repos, conf, notifier)

	// =========================================================================
	// Initialize App

	logger.Info("application initializing", "build", conf.Build, "env", conf.Env, "db", conf.Database.Engine)
	defer logger.Info("application stopped")

	validate, translator := core.NewValidator()

	// shutdown errors raised by handlers stop the whole process
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		SignalShutdown: cancel,
		ProfileSvc:     svcs.Profiles,
		CourseSvc:      svcs.Courses,
		ActivitySvc:    svcs.Activities,
		RoundSvc:       svcs.Rounds,
		GuestSvc:       svcs.Guests,
		GroupSvc:       svcs.Groups,
		DiscussionSvc:  svcs.Discussions,
	})

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	debugSrv := &http.Server{Addr: conf.Server.DebugHost, Handler: http.DefaultServeMux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("debug server closed", "error", err)
		}
		return nil
	})

	// =========================================================================
	// Start API Service

	g.Go(func() error {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server error")
		}
		return nil
	})

	// =========================================================================
	// Shutdown

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("start shutdown...")

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		_ = debugSrv.Shutdown(sctx)
		if err := server.Stop(sctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
		return nil
	})

	return g.Wait()
}

func setUpRepositories(ctx context.Context, conf *core.Config) (di.Repositories, func() error, error) {
	if conf.Database.Engine == "memory" {
		return di.InmemRepositories(inmemdb.Open()), func() error { return nil }, nil
	}

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return di.Repositories{}, nil, err
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return di.Repositories{}, nil, err
	}
	if err = database.Migrate(ctx, db, "up"); err != nil {
		_ = db.Close()
		return di.Repositories{}, nil, err
	}
	return di.SqlxRepositories(db), db.Close, nil
}

func setUpNotifier(ctx context.Context, conf *core.Config, logger core.Logger) (core.Notifier, func(), error) {
	if conf.Redis.Addr == "" {
		return notifysvc.NewConsoleNotifier(logger), func() {}, nil
	}
	client, err := notifysvc.NewRedisClient(ctx, conf)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Error("closing redis client", "error", err)
		}
	}
	return notifysvc.NewRedisNotifier(client, conf, logger), closeFn, nil
}
