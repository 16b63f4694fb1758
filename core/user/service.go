package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound         = errors.New("user not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrPermissionDenied = errors.New("permission denied")
)

type (
	Repository interface {
		// CreateUser stores usr under usr.ID, which must be set.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	// Registrar manages the login identities of users.
	Registrar interface {
		CreatePrincipal(ctx context.Context, email, password string) (core.Principal, error)
		DeletePrincipal(ctx context.Context, id string) error
	}

	Service struct {
		repo      Repository
		registrar Registrar
		mailSvc   core.EmailService
		logger    core.Logger
		validate  *validator.Validate
	}
)

func NewService(repo Repository, registrar Registrar, mailSvc core.EmailService, logger core.Logger, validate *validator.Validate) *Service {
	return &Service{
		repo:      repo,
		registrar: registrar,
		mailSvc:   mailSvc,
		logger:    logger,
		validate:  validate,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string) error {
	_, err := svc.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	case pkgerrors.Cause(err) == ErrNotFound:
		return nil
	default:
		return pkgerrors.Wrap(err, "checking email uniqueness")
	}
}

// CreateWithRole creates a user on behalf of acting, who must be allowed to create nu.Role.
func (svc *Service) CreateWithRole(ctx context.Context, acting User, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if !acting.Manager().CanCreateRole(nu.Role) {
		return User{}, pkgerrors.Wrap(ErrPermissionDenied, PermissionErrorMessage("crear usuarios "+string(nu.Role)))
	}
	return svc.create(ctx, nu)
}

// Create creates a user without any role check. Meant for trusted callers (admin CLI).
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	return svc.create(ctx, nu)
}

func (svc *Service) create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	principal, err := svc.registrar.CreatePrincipal(ctx, nu.Email, nu.Password)
	if err != nil {
		return User{}, pkgerrors.Wrap(err, "creating principal")
	}
	usr, err := svc.repo.CreateUser(ctx, User{
		ID:            principal.ID,
		Email:         nu.Email,
		Name:          nu.Name,
		Role:          nu.Role,
		ControlNumber: nu.ControlNumber,
		CreatedAt:     NowFunc().UTC(),
	})
	if err != nil {
		// the login must not outlive a user that was never stored
		if rbErr := svc.registrar.DeletePrincipal(ctx, principal.ID); rbErr != nil {
			svc.logger.Error("removing principal of unsaved user", rbErr, map[string]interface{}{"principal": principal.ID, "email": nu.Email})
		}
		return User{}, pkgerrors.Wrap(err, "creating user")
	}

	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *Service) sendWelcomeMail(usr User) {
	if svc.mailSvc == nil || usr.Email == "" {
		return
	}
	note := usr.Role.Notification()
	body := note.Welcome
	if note.Restrictions != "" {
		body += "\n" + note.Restrictions
	}
	body += fmt.Sprintf("\nNo. Control: %s", usr.ControlNumber)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Cuenta " + usr.Role.DisplayName(),
		BodyStr: body,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, acting User, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.ID != acting.ID && !acting.Manager().CanEditUser(usr) {
		return User{}, pkgerrors.Wrap(ErrPermissionDenied, PermissionErrorMessage("editar usuario"))
	}
	if err = uu.Validate(usr, svc.validate); err != nil {
		return User{}, err
	}
	usr.Name = uu.Name
	usr.ControlNumber = uu.ControlNumber
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, acting User, id string) error {
	// Say No to Suicide! acting user cannot delete themselves
	if id == acting.ID {
		return pkgerrors.Wrap(ErrPermissionDenied, PermissionErrorMessage("eliminar su propia cuenta"))
	}
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !acting.Manager().CanDeleteUser(usr) {
		return pkgerrors.Wrap(ErrPermissionDenied, PermissionErrorMessage("eliminar usuario"))
	}
	if err = svc.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	return svc.registrar.DeletePrincipal(ctx, id)
}
