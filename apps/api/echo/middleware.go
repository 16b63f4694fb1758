package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core/user"
)

// permission is a RoleManager predicate, e.g. (*user.RoleManager).CanManageGrades.
type permission func(*user.RoleManager) bool

// requirePermission lets the request through when the context user's role satisfies any of perms.
// action names the denied action in the error message.
func requirePermission(action string, perms ...permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			mgr := usr.Manager()
			for _, allowed := range perms {
				if allowed(mgr) {
					return next(ctx)
				}
			}
			return newForbiddenError(user.PermissionErrorMessage(action))
		}
	}
}
