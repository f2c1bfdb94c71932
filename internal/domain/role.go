package domain

// Role names carried in session-token claims.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
