package models

type UserRole string

const (
	RoleWorker UserRole = "worker"
	RoleAdmin  UserRole = "admin"
)

func IsValidRole(role UserRole) bool {
	return role == RoleWorker || role == RoleAdmin
}

type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Role     UserRole `json:"role"`
}

// Session is the authenticated identity plus its bearer credential.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (s Session) IsAdmin() bool {
	return s.User.Role == RoleAdmin
}
