package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core/guest"
)

type guestApi struct {
	svc      *guest.Service
	validate *validator.Validate
}

func registerGuestAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *guest.Service, validate *validator.Validate) {
	api := guestApi{
		svc:      svc,
		validate: validate,
	}
	staff := append(authed, staffMiddleware())

	// un-authed endpoints
	// TODO: rate limit `/join` per client address
	g.POST("/join", api.join)

	// authed endpoints
	g.POST("/activities/:id/invitations", api.createInvitation, staff...)
	g.GET("/activities/:id/invitations", api.queryInvitations, staff...)
	g.DELETE("/invitations/:id", api.revokeInvitation, staff...)
	g.GET("/activities/:id/sessions", api.querySessions, staff...)
	g.DELETE("/sessions/:id", api.revokeSession, staff...)
}

// Handlers

func (api *guestApi) join(ctx echo.Context) error {
	var data guest.JoinRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	joined, err := api.svc.Join(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "joining activity")
	}
	return ctx.JSON(http.StatusCreated, joined)
}

func (api *guestApi) createInvitation(ctx echo.Context) error {
	var data guest.NewInvitation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvitation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	inv, err := api.svc.CreateInvitation(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating invitation")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *guestApi) queryInvitations(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	invs, err := api.svc.ListInvitations(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing invitations")
	}
	return ctx.JSON(http.StatusOK, invs)
}

func (api *guestApi) revokeInvitation(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RevokeInvitation(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "revoking invitation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *guestApi) querySessions(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	sessions, err := api.svc.ListSessions(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *guestApi) revokeSession(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RevokeSession(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "revoking session")
	}
	return ctx.NoContent(http.StatusNoContent)
}
