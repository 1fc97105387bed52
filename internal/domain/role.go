package domain

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRoles returns every known role.
func ValidRoles() []string {
	return []string{RoleUser, RoleAdmin}
}

// IsValidRole reports whether role is known.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if r == role {
			return true
		}
	}
	return false
}
