package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/baraza/core/identity"
)

// staffMiddleware only lets teachers and TAs through.
func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			caller, err := getContextIdentity(ctx)
			if err != nil {
				return err
			}
			if _, ok := identity.StaffID(caller); !ok {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// studentMiddleware only lets students through, with an account or a guest session.
func studentMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			caller, err := getContextIdentity(ctx)
			if err != nil {
				return err
			}
			if !caller.IsStudent() {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
