package access

import "fmt"

// Role identifies the caller's job function. Roles are immutable for the
// duration of a request; the upstream staff directory owns assignment.
type Role string

const (
	RoleGuest         Role = "guest"
	RoleVolunteer     Role = "volunteer"
	RoleStaff         Role = "staff"
	RoleCaseManager   Role = "case_manager"
	RoleMedicalStaff  Role = "medical_staff"
	RoleAdministrator Role = "administrator"
	RoleSystemAdmin   Role = "system_admin"
)

var knownRoles = map[Role]struct{}{
	RoleGuest:         {},
	RoleVolunteer:     {},
	RoleStaff:         {},
	RoleCaseManager:   {},
	RoleMedicalStaff:  {},
	RoleAdministrator: {},
	RoleSystemAdmin:   {},
}

// Known reports whether r is a defined role. Unknown roles are treated as
// having no eligibility anywhere.
func (r Role) Known() bool {
	_, ok := knownRoles[r]
	return ok
}

// ParseRole converts a wire-format role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Known() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
