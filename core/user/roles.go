package user

import (
	"fmt"
	"strings"
)

// Role is a named privilege tier.
type Role string

// Roles
const (
	RolePowerUser Role = "POWERUSER"
	RoleAdmin     Role = "ADMIN"
	RoleDocente   Role = "DOCENTE" // teacher
	RoleAlumno    Role = "ALUMNO"  // student

	// RoleNone stands for any unrecognized role value.
	RoleNone Role = ""
)

// Panels
const (
	PanelAdmin   = "admin"
	PanelDocente = "docente"
	PanelAlumno  = "alumno"
)

// LoginPath is where unauthenticated or unauthorized users are sent.
const LoginPath = "login.html"

// PermissionSet holds the capabilities attached to a Role.
type PermissionSet struct {
	CreatableRoles []Role `json:"can_create_roles"`

	EditAnyUser   bool `json:"can_edit_any_user"`
	DeleteAnyUser bool `json:"can_delete_any_user"`
	ViewAllUsers  bool `json:"can_view_all_users"`

	FullAccess   bool `json:"has_full_access"`
	AdminPanel   bool `json:"can_access_admin_panel"`
	DocentePanel bool `json:"can_access_docente_panel"`
	AlumnoPanel  bool `json:"can_access_alumno_panel"`

	ManageSubjects    bool `json:"can_manage_subjects"`
	ManageAssignments bool `json:"can_manage_assignments"`
	ManageEnrollments bool `json:"can_manage_enrollments"`
	ManageGrades      bool `json:"can_manage_grades"`
	ViewAllGrades     bool `json:"can_view_all_grades"`

	ExportData bool `json:"can_export_data"`
	ImportData bool `json:"can_import_data"`

	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

// RoleNotification is the message shown to a user of a given role when they sign in.
type RoleNotification struct {
	Welcome      string `json:"welcome"`
	Restrictions string `json:"restrictions,omitempty"`
}

type roleMeta struct {
	rank         int
	displayName  string
	redirectPath string
	notification RoleNotification
	permissions  PermissionSet
}

var (
	// AllRoles is ordered from the most to the least privileged.
	AllRoles = []Role{RolePowerUser, RoleAdmin, RoleDocente, RoleAlumno}

	noPermissions PermissionSet

	policies = map[Role]roleMeta{
		RolePowerUser: {
			rank:         4,
			displayName:  "Power User",
			redirectPath: "admin-dashboard.html",
			notification: RoleNotification{
				Welcome: "¡Bienvenido, Power User! Tienes acceso completo al sistema.",
			},
			permissions: PermissionSet{
				CreatableRoles:    []Role{RolePowerUser, RoleAdmin, RoleDocente, RoleAlumno},
				EditAnyUser:       true,
				DeleteAnyUser:     true,
				ViewAllUsers:      true,
				FullAccess:        true,
				AdminPanel:        true,
				DocentePanel:      true,
				AlumnoPanel:       true,
				ManageSubjects:    true,
				ManageAssignments: true,
				ManageEnrollments: true,
				ManageGrades:      true,
				ViewAllGrades:     true,
				ExportData:        true,
				ImportData:        true,
				Description:       "Acceso completo al sistema con todos los permisos",
				Icon:              "🔧",
				Color:             "#ff6b6b",
			},
		},
		RoleAdmin: {
			rank:         3,
			displayName:  "Administrador",
			redirectPath: "admin-dashboard.html",
			notification: RoleNotification{
				Welcome:      "¡Bienvenido, Administrador! Puedes gestionar docentes y alumnos.",
				Restrictions: "Recuerda: solo puedes crear usuarios DOCENTE y ALUMNO.",
			},
			permissions: PermissionSet{
				CreatableRoles:    []Role{RoleDocente, RoleAlumno},
				ViewAllUsers:      true,
				AdminPanel:        true,
				ManageSubjects:    true,
				ManageAssignments: true,
				ManageEnrollments: true,
				ViewAllGrades:     true, // read only
				ExportData:        true,
				ImportData:        true,
				Description:       "Administración de docentes, alumnos y configuración del sistema",
				Icon:              "👨‍💼",
				Color:             "#4ecdc4",
			},
		},
		RoleDocente: {
			rank:         2,
			displayName:  "Docente",
			redirectPath: "docente-dashboard.html",
			notification: RoleNotification{
				Welcome:      "¡Bienvenido, Docente! Puedes calificar y gestionar tus alumnos.",
				Restrictions: "Puedes crear nuevos alumnos y calificar a los estudiantes de tus materias.",
			},
			permissions: PermissionSet{
				CreatableRoles: []Role{RoleAlumno},
				DocentePanel:   true,
				ManageGrades:   true,
				ExportData:     true,
				Description:    "Evaluaciones, calificaciones y gestión limitada de alumnos",
				Icon:           "👨‍🏫",
				Color:          "#6B8E6B",
			},
		},
		RoleAlumno: {
			rank:         1,
			displayName:  "Alumno",
			redirectPath: "alumno-dashboard.html",
			notification: RoleNotification{
				Welcome: "¡Bienvenido, Estudiante! Consulta tus calificaciones y progreso.",
			},
			permissions: PermissionSet{
				CreatableRoles: []Role{},
				AlumnoPanel:    true,
				Description:    "Consulta de calificaciones y progreso académico personal",
				Icon:           "🎓",
				Color:          "#17a2b8",
			},
		},
	}
)

// ParseRole maps a raw value to a Role; unrecognized values map to RoleNone.
func ParseRole(s string) Role {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := policies[r]; ok {
		return r
	}
	return RoleNone
}

// IsValid reports whether r is one of AllRoles.
func (r Role) IsValid() bool {
	_, ok := policies[r]
	return ok
}

// Rank is the privilege level of r; 0 for unrecognized roles.
func (r Role) Rank() int {
	return policies[r].rank
}

// DisplayName is the human friendly name of r; unrecognized roles are returned as is.
func (r Role) DisplayName() string {
	if meta, ok := policies[r]; ok {
		return meta.displayName
	}
	return string(r)
}

// BadgeClass is the CSS class used to render r.
func (r Role) BadgeClass() string {
	if !r.IsValid() {
		return ""
	}
	return "role-" + strings.ToLower(string(r))
}

// RedirectPath is the dashboard a user of role r lands on.
func (r Role) RedirectPath() string {
	if meta, ok := policies[r]; ok {
		return meta.redirectPath
	}
	return LoginPath
}

// Notification is the sign-in message of r.
func (r Role) Notification() RoleNotification {
	return policies[r].notification
}

// PermissionsFor looks up the PermissionSet of role. Unrecognized roles get an empty set.
// The returned set never shares memory with the policy table.
func PermissionsFor(role Role) PermissionSet {
	meta, ok := policies[role]
	if !ok {
		return noPermissions
	}
	perms := meta.permissions
	perms.CreatableRoles = make([]Role, len(meta.permissions.CreatableRoles))
	copy(perms.CreatableRoles, meta.permissions.CreatableRoles)
	return perms
}

// HasPermission reports whether the acting role ranks at least as high as the required one.
func HasPermission(acting, required Role) bool {
	return acting.Rank() >= required.Rank()
}

// ManagedRoles returns the roles a user of role manager may create.
func ManagedRoles(manager Role) []Role {
	return NewRoleManager(manager).AvailableRoles()
}

// MaxRole returns the most privileged of roles (RoleNone if empty).
func MaxRole(roles ...Role) Role {
	max := RoleNone
	for _, r := range roles {
		if r.Rank() > max.Rank() {
			max = r
		}
	}
	return max
}

func PermissionErrorMessage(action string) string {
	return fmt.Sprintf("No tienes permisos suficientes para realizar esta acción: %s", action)
}
