package user

// RoleManager answers authorization questions for one acting role.
type RoleManager struct {
	role  Role
	perms PermissionSet
}

// RoleInfo describes a role and everything it is allowed to do.
type RoleInfo struct {
	Role        Role          `json:"role"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Color       string        `json:"color"`
	Permissions PermissionSet `json:"permissions"`
}

func NewRoleManager(role Role) *RoleManager {
	return &RoleManager{role: role, perms: PermissionsFor(role)}
}

func (m *RoleManager) Role() Role { return m.role }

func (m *RoleManager) CanCreateRole(target Role) bool {
	for _, r := range m.perms.CreatableRoles {
		if r == target {
			return true
		}
	}
	return false
}

// CanEditUser: admins edit anyone below admin, teachers edit students only.
func (m *RoleManager) CanEditUser(target User) bool {
	if m.perms.EditAnyUser {
		return true
	}
	switch m.role {
	case RoleAdmin:
		return target.Role != RolePowerUser && target.Role != RoleAdmin
	case RoleDocente:
		return target.Role == RoleAlumno
	default:
		return false
	}
}

// CanDeleteUser: admins delete teachers and students, teachers delete students only.
func (m *RoleManager) CanDeleteUser(target User) bool {
	if m.perms.DeleteAnyUser {
		return true
	}
	switch m.role {
	case RoleAdmin:
		return target.Role == RoleDocente || target.Role == RoleAlumno
	case RoleDocente:
		return target.Role == RoleAlumno
	default:
		return false
	}
}

func (m *RoleManager) CanAccessPanel(panel string) bool {
	switch panel {
	case PanelAdmin:
		return m.perms.AdminPanel
	case PanelDocente:
		return m.perms.DocentePanel
	case PanelAlumno:
		return m.perms.AlumnoPanel
	default:
		return false
	}
}

func (m *RoleManager) HasPermission(required Role) bool { return HasPermission(m.role, required) }

func (m *RoleManager) CanViewAllUsers() bool { return m.perms.ViewAllUsers }
func (m *RoleManager) CanManageSubjects() bool { return m.perms.ManageSubjects }
func (m *RoleManager) CanManageEnrollments() bool { return m.perms.ManageEnrollments }
func (m *RoleManager) CanManageGrades() bool { return m.perms.ManageGrades }
func (m *RoleManager) CanViewAllGrades() bool { return m.perms.ViewAllGrades }
func (m *RoleManager) CanExportData() bool { return m.perms.ExportData }
func (m *RoleManager) CanImportData() bool { return m.perms.ImportData }

// AvailableRoles returns the roles the acting role may assign to new users.
func (m *RoleManager) AvailableRoles() []Role {
	roles := make([]Role, len(m.perms.CreatableRoles))
	copy(roles, m.perms.CreatableRoles)
	return roles
}

func (m *RoleManager) Info() RoleInfo {
	return RoleInfo{
		Role:        m.role,
		Description: m.perms.Description,
		Icon:        m.perms.Icon,
		Color:       m.perms.Color,
		Permissions: PermissionsFor(m.role),
	}
}
