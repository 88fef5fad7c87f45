package blog

import "strings"

// UserRole is a principal role. Roles form a total order: user < editor < admin.
type UserRole string

const (
	RoleUser   UserRole = "user"
	RoleEditor UserRole = "editor"
	RoleAdmin  UserRole = "admin"
)

var roleHierarchy = map[UserRole]int{
	RoleUser:   0,
	RoleEditor: 1,
	RoleAdmin:  2,
}

// Rank returns the position of the role in the hierarchy or -1
// for unknown roles.
func (r UserRole) Rank() int {
	rank, ok := roleHierarchy[r]
	if !ok {
		return -1
	}
	return rank
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	return r.Rank() >= 0
}

// CanEdit checks if this role can edit resources owned by others
func (r UserRole) CanEdit() bool {
	return r.IsAtLeast(RoleEditor)
}

// CanManageUsers checks if this role can change roles and status of principals
func (r UserRole) CanManageUsers() bool {
	return r.IsAtLeast(RoleAdmin)
}

// IsAtLeast checks if this role meets the minimum required level.
// Unknown roles never satisfy and are never satisfied.
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	current := r.Rank()
	if current < 0 {
		return false
	}

	min := minRole.Rank()
	if min < 0 {
		return false
	}

	return current >= min
}

func (r UserRole) String() string { return string(r) }

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleEditor,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}
