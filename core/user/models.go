package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sistemaeducativo/gradebook/core"
)

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	ControlNumber string    `json:"control_number"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin || u.Role == RolePowerUser }
func (u User) IsTeacher() bool { return u.Role == RoleDocente }
func (u User) IsStudent() bool { return u.Role == RoleAlumno }

// Manager returns the RoleManager of u's role.
func (u User) Manager() *RoleManager { return NewRoleManager(u.Role) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email         string `json:"email" csv:"email" validate:"required,email"`
	Name          string `json:"name" csv:"nombre" validate:"required"`
	Role          Role   `json:"role" csv:"role" validate:"required,role"`
	ControlNumber string `json:"control_number" csv:"numeroControl" validate:"required,controlnum"`
	Password      string `json:"password" csv:"password" validate:"required"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Name = core.CapitalizeWords(core.CleanString(nu.Name))
	nu.ControlNumber = strings.ToUpper(core.CleanString(nu.ControlNumber))
	nu.Role = Role(strings.ToUpper(core.CleanString(string(nu.Role))))
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// The role of a user cannot be changed once assigned.
type UpdateUser struct {
	Name          string `json:"name"`
	ControlNumber string `json:"control_number" validate:"omitempty,controlnum"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = core.CapitalizeWords(name)
	} else {
		uu.Name = origUsr.Name
	}
	if ctrl := strings.ToUpper(core.CleanString(uu.ControlNumber)); ctrl != "" {
		uu.ControlNumber = ctrl
	} else {
		uu.ControlNumber = origUsr.ControlNumber
	}
	return validate.Struct(uu)
}

type QueryFilter struct {
	Roles []Role `query:"role"`
}

func (qf QueryFilter) IsEmpty() bool {
	return len(qf.Roles) == 0
}

// Match reports whether usr satisfies the filter.
func (qf QueryFilter) Match(usr User) bool {
	if qf.IsEmpty() {
		return true
	}
	for _, r := range qf.Roles {
		if usr.Role == r {
			return true
		}
	}
	return false
}
