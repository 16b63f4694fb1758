package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/auth"
	"github.com/sistemaeducativo/gradebook/core/user"
)

type userApi struct {
	svc      *user.Service
	provider auth.Provider
	jwt      *jwtAuth
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt *jwtAuth, opts *Options) {
	api := userApi{
		svc:      opts.UserSvc,
		provider: opts.Provider,
		jwt:      jwt,
		validate: opts.Validate,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt.required())
	ag.POST("/logout", api.logout)
	ag.GET("/me", api.me)
	ag.GET("/roles", api.queryRoles)
	ag.POST("", api.create)
	ag.GET("", api.query, requirePermission("ver todos los usuarios", (*user.RoleManager).CanViewAllUsers))

	// detail endpoints
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	principal, err := api.provider.Authenticate(reqCtx, data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}

	usr, err := api.svc.Get(reqCtx, principal.ID)
	if err != nil {
		// a login without a stored user is of no use: close the session right away
		if sErr := api.provider.SignOut(reqCtx, principal.SessionID); sErr != nil {
			ctx.Logger().Errorf("%+v", errors.Wrap(sErr, "closing orphan session"))
		}
		if errors.Cause(err) == user.ErrNotFound {
			return echo.NewHTTPError(http.StatusUnauthorized, auth.MsgUserNotFound)
		}
		return errors.Wrap(err, "getting user")
	}

	token, err := api.jwt.GenerateToken(api.jwt.GetUserClaims(usr, principal.SessionID))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:             token,
		PrincipalResponse: newPrincipalResponse(usr),
	})
}

func (api *userApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.provider.SignOut(ctx.Request().Context(), claims.Id); err != nil {
		return errors.Wrap(err, "signing out")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, newPrincipalResponse(usr))
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	usr, err := api.svc.CreateWithRole(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	for i, r := range filter.Roles {
		filter.Roles[i] = user.ParseRole(string(r))
	}

	users, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	roles := ctxUsr.Manager().AvailableRoles()
	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, newRoleResponse(r))
	}
	return ctx.JSON(http.StatusOK, res)
}

// retrieve returns the requested user to themselves, to users who can see everyone,
// and to users who could edit them.
func (api *userApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	usr, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting user")
	}

	mgr := ctxUsr.Manager()
	if usr.ID != ctxUsr.ID && !mgr.CanViewAllUsers() && !mgr.CanEditUser(usr) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	usr, err := api.svc.Update(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Delete(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	RoleResponse struct {
		Role        user.Role `json:"role"`
		DisplayName string    `json:"display_name"`
		BadgeClass  string    `json:"badge_class"`
		Description string    `json:"description"`
	}

	// PrincipalResponse is what a signed-in user needs to render their landing page.
	PrincipalResponse struct {
		User         user.User             `json:"user"`
		Role         user.RoleInfo         `json:"role"`
		DisplayName  string                `json:"display_name"`
		BadgeClass   string                `json:"badge_class"`
		RedirectTo   string                `json:"redirect_to"`
		Notification user.RoleNotification `json:"notification"`
	}

	LoginResponse struct {
		Token string `json:"token"`
		PrincipalResponse
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func newRoleResponse(r user.Role) RoleResponse {
	return RoleResponse{
		Role:        r,
		DisplayName: r.DisplayName(),
		BadgeClass:  r.BadgeClass(),
		Description: user.PermissionsFor(r).Description,
	}
}

func newPrincipalResponse(usr user.User) PrincipalResponse {
	return PrincipalResponse{
		User:         usr,
		Role:         usr.Manager().Info(),
		DisplayName:  usr.Role.DisplayName(),
		BadgeClass:   usr.Role.BadgeClass(),
		RedirectTo:   usr.Role.RedirectPath(),
		Notification: usr.Role.Notification(),
	}
}
