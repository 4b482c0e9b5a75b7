package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/round"
)

type activityApi struct {
	svc         *activity.Service
	rounds      *round.Service
	discussions *discussion.Service
	validate    *validator.Validate
}

func registerActivityAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *activity.Service,
	rounds *round.Service,
	discussions *discussion.Service,
	validate *validator.Validate,
) {
	api := activityApi{
		svc:         svc,
		rounds:      rounds,
		discussions: discussions,
		validate:    validate,
	}
	staff := staffMiddleware()

	ag := g.Group("/activities/:id", authed...)
	ag.GET("", api.retrieve)
	ag.DELETE("", api.destroy, staff)
	ag.POST("/start", api.start, staff)
	ag.POST("/end", api.end, staff)
	ag.POST("/advance", api.advance, staff)

	// rounds
	ag.POST("/questions/:qid/rounds", api.startRound, staff)
	ag.GET("/questions/:qid/rounds", api.queryRounds, staff)
	ag.GET("/questions/:qid/rounds/current", api.currentRound)

	rg := g.Group("/rounds", append(authed, staff)...)
	rg.POST("/:id/end", api.endRound)
}

// Handlers

func (api *activityApi) retrieve(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	act, err := api.svc.View(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting activity")
	}
	return ctx.JSON(http.StatusOK, act)
}

func (api *activityApi) destroy(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *activityApi) start(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	act, err := api.svc.Start(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting activity")
	}
	return ctx.JSON(http.StatusOK, act)
}

func (api *activityApi) end(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	act, err := api.svc.End(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "ending activity")
	}
	return ctx.JSON(http.StatusOK, act)
}

// advance moves the activity to its next question and opens round 1 of it.
func (api *activityApi) advance(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	act, err := api.svc.Advance(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "advancing activity")
	}
	return ctx.JSON(http.StatusOK, act)
}

func (api *activityApi) startRound(ctx echo.Context) error {
	var data round.NewRound
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRound")
	}
	data.QuestionID = ctx.Param("qid")
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	rnd, err := api.rounds.Start(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "starting round")
	}
	return ctx.JSON(http.StatusCreated, rnd)
}

func (api *activityApi) queryRounds(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	rounds, err := api.rounds.List(ctx.Request().Context(), caller, ctx.Param("id"), ctx.Param("qid"))
	if err != nil {
		return errors.Wrap(err, "listing rounds")
	}
	return ctx.JSON(http.StatusOK, rounds)
}

func (api *activityApi) currentRound(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	rnd, err := api.discussions.GetCurrentRound(ctx.Request().Context(), caller, ctx.Param("id"), ctx.Param("qid"))
	if err != nil {
		return errors.Wrap(err, "getting current round")
	}
	return ctx.JSON(http.StatusOK, rnd)
}

func (api *activityApi) endRound(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	rnd, err := api.rounds.End(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "ending round")
	}
	return ctx.JSON(http.StatusOK, rnd)
}
