package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core/activity"
	"github.com/trezcool/baraza/core/course"
)

type courseApi struct {
	svc        *course.Service
	activities *activity.Service
	validate   *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *course.Service,
	activities *activity.Service,
	validate *validator.Validate,
) {
	api := courseApi{
		svc:        svc,
		activities: activities,
		validate:   validate,
	}

	cg := g.Group("/courses", append(authed, staffMiddleware())...)
	cg.POST("", api.createCourse)
	cg.GET("", api.queryCourses)
	cg.PUT("/:id", api.updateCourse)
	cg.DELETE("/:id", api.deleteCourse)
	cg.POST("/:id/questions", api.createQuestion)
	cg.GET("/:id/questions", api.queryQuestions)
	cg.POST("/:id/activities", api.createActivity)
	cg.GET("/:id/activities", api.queryActivities)

	qg := g.Group("/questions", authed...)
	qg.GET("/:id", api.retrieveQuestion)
	qg.PUT("/:id", api.updateQuestion, staffMiddleware())
	qg.DELETE("/:id", api.deleteQuestion, staffMiddleware())
}

// Handlers

func (api *courseApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.CreateCourse(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) queryCourses(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	crss, err := api.svc.ListCourses(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	return ctx.JSON(http.StatusOK, crss)
}

func (api *courseApi) updateCourse(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.UpdateCourse(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) deleteCourse(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCourse(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) createQuestion(ctx echo.Context) error {
	var data course.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	q, err := api.svc.CreateQuestion(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *courseApi) queryQuestions(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	qs, err := api.svc.ListQuestions(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	return ctx.JSON(http.StatusOK, qs)
}

// retrieveQuestion hides the answer key from students.
func (api *courseApi) retrieveQuestion(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	q, err := api.svc.GetQuestion(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting question")
	}
	if caller.IsStudent() {
		q = q.Public()
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *courseApi) updateQuestion(ctx echo.Context) error {
	var data course.UpdateQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *courseApi) createActivity(ctx echo.Context) error {
	var data activity.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	act, err := api.activities.Create(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating activity")
	}
	return ctx.JSON(http.StatusCreated, act)
}

func (api *courseApi) queryActivities(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	acts, err := api.activities.List(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing activities")
	}
	return ctx.JSON(http.StatusOK, acts)
}

func (api *courseApi) deleteQuestion(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteQuestion(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}
