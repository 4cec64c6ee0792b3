package service

// Role is the user's role claim as issued by the task service.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is the profile returned at login.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	TeamID string `json:"teamId"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Auth is the result of a successful login.
type Auth struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Task represents a single task item. Tasks pushed by the taskCreated
// subscription carry no TeamID.
type Task struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	TeamID string `json:"teamId,omitempty"`
}
