package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/discussion"
	"github.com/trezcool/baraza/core/group"
)

type (
	groupApi struct {
		svc              *group.Service
		discussions      *discussion.Service
		validate         *validator.Validate
		defaultGroupSize int
	}

	// finalRequest is the body of a final answer: the group lives in the path.
	finalRequest struct {
		ActivityID string `json:"activity_id"`
		group.SubmitFinal
	}
)

func registerGroupAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *group.Service,
	discussions *discussion.Service,
	validate *validator.Validate,
	defaultGroupSize int,
) {
	api := groupApi{
		svc:              svc,
		discussions:      discussions,
		validate:         validate,
		defaultGroupSize: defaultGroupSize,
	}
	staff := staffMiddleware()

	ag := g.Group("/activities/:id/groups", authed...)
	ag.POST("", api.create, staff)
	ag.GET("", api.query, staff)
	ag.POST("/auto", api.autoAssign, staff)
	ag.GET("/mine", api.mine, studentMiddleware())

	gg := g.Group("/groups/:id", authed...)
	gg.GET("", api.retrieve)
	gg.POST("/final", api.submitFinal, studentMiddleware())
	gg.GET("/rounds/:rid/messages", api.queryMessages)
	gg.GET("/questions/:qid/choices", api.queryChoices)
}

// Handlers

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) query(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	groups, err := api.svc.List(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) autoAssign(ctx echo.Context) error {
	var data group.AutoAssign
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AutoAssign")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if data.GroupSize == 0 {
		data.GroupSize = api.defaultGroupSize
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	groups, err := api.svc.AutoAssignGuests(ctx.Request().Context(), caller, ctx.Param("id"), data.GroupSize)
	if err != nil {
		return errors.Wrap(err, "assigning guests")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusCreated, groups)
}

func (api *groupApi) mine(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	grp, err := api.svc.Mine(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting own group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	grp, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) submitFinal(ctx echo.Context) error {
	var data finalRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to finalRequest")
	}
	data.ActivityID = core.CleanString(data.ActivityID)
	if data.ActivityID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "activity_id", Error: "this field is required"})
	}
	if err := data.SubmitFinal.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	grp, err := api.svc.SubmitFinalChoice(ctx.Request().Context(), caller, data.ActivityID, ctx.Param("id"), data.SubmitFinal)
	if err != nil {
		return errors.Wrap(err, "submitting final choice")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) queryMessages(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	msgs, err := api.discussions.GetGroupMessages(ctx.Request().Context(), caller, ctx.Param("id"), ctx.Param("rid"))
	if err != nil {
		return errors.Wrap(err, "getting group messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *groupApi) queryChoices(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	subs, err := api.discussions.GetGroupChoices(ctx.Request().Context(), caller, ctx.Param("id"), ctx.Param("qid"))
	if err != nil {
		return errors.Wrap(err, "getting group choices")
	}
	return ctx.JSON(http.StatusOK, subs)
}
