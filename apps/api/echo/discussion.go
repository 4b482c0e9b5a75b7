package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core/discussion"
)

type discussionApi struct {
	svc      *discussion.Service
	validate *validator.Validate
}

func registerDiscussionAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *discussion.Service, validate *validator.Validate) {
	api := discussionApi{
		svc:      svc,
		validate: validate,
	}
	student := append(authed, studentMiddleware())

	g.POST("/messages", api.createMessage, student...)
	g.POST("/choices", api.submitChoice, student...)
	g.POST("/content/validate", api.preview, authed...)
}

// Handlers

func (api *discussionApi) createMessage(ctx echo.Context) error {
	var data discussion.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	msg, err := api.svc.SubmitMessage(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "submitting message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *discussionApi) submitChoice(ctx echo.Context) error {
	var data discussion.NewChoice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChoice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	sub, err := api.svc.SubmitIndividualChoice(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "submitting choice")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// preview returns the verdict the content would get, so clients can show it while typing.
func (api *discussionApi) preview(ctx echo.Context) error {
	var data discussion.Preview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Preview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	verdict, err := api.svc.Preview(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "previewing content")
	}
	return ctx.JSON(http.StatusOK, verdict)
}
