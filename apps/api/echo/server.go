package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/course"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/group"
	"github.com/trezcool/baraza/core/guest"
	"github.com/trezcool/baraza/core/identity"
	"github.com/trezcool/baraza/core/round"
)

type (
	Options struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		// SignalShutdown is called when a handler fails with a shutdown error.
		SignalShutdown func()

		ProfileSvc    *identity.Service
		CourseSvc     *course.Service
		ActivitySvc   *activity.Service
		RoundSvc      *round.Service
		GuestSvc      *guest.Service
		GroupSvc      *group.Service
		DiscussionSvc *discussion.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
		auth *authenticator
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
		auth: newAuthenticator(opts.Conf, opts.ProfileSvc, opts.GuestSvc),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{s.auth.jwtMiddleware(), s.auth.identityMiddleware()}

	registerGuestAPI(v1, authed, s.opts.GuestSvc, s.opts.Validate)
	registerCourseAPI(v1, authed, s.opts.CourseSvc, s.opts.ActivitySvc, s.opts.Validate)
	registerActivityAPI(v1, authed, s.opts.ActivitySvc, s.opts.RoundSvc, s.opts.DiscussionSvc, s.opts.Validate)
	registerGroupAPI(v1, authed, s.opts.GroupSvc, s.opts.DiscussionSvc, s.opts.Validate, conf.Discussion.DefaultGroupSize)
	registerDiscussionAPI(v1, authed, s.opts.DiscussionSvc, s.opts.Validate)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Baraza API!")
}
