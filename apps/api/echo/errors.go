package echoapi

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/auth"
	"github.com/sistemaeducativo/gradebook/core/grade"
	"github.com/sistemaeducativo/gradebook/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errSessionExpired       = echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

func newForbiddenError(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusForbidden, msg)
}

// wrappedMessage returns the message err attached when wrapping target, or "".
func wrappedMessage(err, target error) string {
	type causer interface{ Cause() error }
	for err != nil {
		c, ok := err.(causer)
		if !ok {
			return ""
		}
		next := c.Cause()
		if next == target {
			return strings.TrimSuffix(err.Error(), ": "+target.Error())
		}
		err = next
	}
	return ""
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					if prev, ok := fldErrs[fErr.Field]; ok {
						fldErrs[fErr.Field] = prev + "\n" + fErr.Error
					} else {
						fldErrs[fErr.Field] = fErr.Error
					}
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch origErr {
			case user.ErrPermissionDenied:
				code = http.StatusForbidden
				if msg := wrappedMessage(err, origErr); msg != "" {
					message = msg
				} else {
					message = auth.MsgNoPermission
				}
			case user.ErrNotFound, grade.ErrSubjectNotFound:
				code = http.StatusNotFound
				message = origErr.Error()
			case auth.ErrInvalidCredentials:
				code = errAuthenticationFailed.Code
				message = origErr.Error()
			case auth.ErrNoSession:
				code = http.StatusUnauthorized
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Email = claims.Email
					usr.Role = claims.Role
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
