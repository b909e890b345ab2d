package models

// UserRole represents the portal roles carried in access tokens.
type UserRole string

const (
	RoleAdmin            UserRole = "ADMIN"
	RoleModerator        UserRole = "MODERATOR"
	RoleTeacher          UserRole = "TEACHER"
	RoleStudent          UserRole = "STUDENT"
	RoleCafeteriaManager UserRole = "CAFETERIA_MANAGER"
	RoleLibrarian        UserRole = "LIBRARIAN"
)

// Valid reports whether r is a known portal role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleTeacher, RoleStudent, RoleCafeteriaManager, RoleLibrarian:
		return true
	default:
		return false
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
