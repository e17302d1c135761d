package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// rolesMiddleware lets through the users holding any of roles. Admins have every director right.
func rolesMiddleware(roles ...string) echo.MiddlewareFunc {
	allowed := append([]string(nil), roles...)
	for _, role := range roles {
		if role == RoleDirector {
			allowed = append(allowed, RoleAdmin)
			break
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if contextHasAnyRole(ctx, allowed) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
