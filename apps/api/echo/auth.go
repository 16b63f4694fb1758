package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/auth"
	"github.com/sistemaeducativo/gradebook/core/user"
)

const (
	contextTokenKey     = "userToken"
	contextPrincipalKey = "principal"
	contextUserKey      = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
// Subject is the user ID and Id the session the token was issued for.
type Claims struct {
	jwt.StandardClaims
	Email string    `json:"email,omitempty"`
	Role  user.Role `json:"role,omitempty"`
}

type jwtAuth struct {
	conf     *core.Config
	config   middleware.JWTConfig
	provider auth.Provider
	gate     *auth.Gate
}

func newJWTAuth(conf *core.Config, provider auth.Provider, gate *auth.Gate) *jwtAuth {
	return &jwtAuth{
		conf: conf,
		config: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
		provider: provider,
		gate:     gate,
	}
}

func (a *jwtAuth) GetUserClaims(usr user.User, sessionID string) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sessionID,
			Issuer:    a.conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: usr.Email,
		Role:  usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (a *jwtAuth) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.config.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.config.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// required rejects requests without a valid token bound to an open session.
func (a *jwtAuth) required() echo.MiddlewareFunc {
	jwtMw := middleware.JWTWithConfig(a.config)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMw(a.session(next, true))
	}
}

// optional resolves the session when a token is sent, and lets anonymous requests through.
func (a *jwtAuth) optional() echo.MiddlewareFunc {
	config := a.config
	config.Skipper = func(ctx echo.Context) bool {
		return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
	}
	jwtMw := middleware.JWTWithConfig(config)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMw(a.session(next, false))
	}
}

func (a *jwtAuth) session(next echo.HandlerFunc, required bool) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			if required {
				return err
			}
			return next(ctx)
		}

		principal, err := a.provider.CurrentPrincipal(ctx.Request().Context(), claims.Id)
		if err != nil {
			return errors.Wrap(err, "getting current principal")
		}
		if principal == nil || principal.ID != claims.Subject {
			return errSessionExpired
		}
		ctx.Set(contextPrincipalKey, principal)

		if !required {
			return next(ctx)
		}
		usr := a.gate.CurrentUser(ctx.Request().Context(), principal)
		if usr == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, auth.MsgUserNotFound)
		}
		ctx.Set(contextUserKey, *usr)
		return next(ctx)
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextPrincipal(ctx echo.Context) *core.Principal {
	principal, _ := ctx.Get(contextPrincipalKey).(*core.Principal)
	return principal
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}
