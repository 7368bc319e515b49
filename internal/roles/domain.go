package roles

import "time"

// Role represents a role for management. Roles belong to a company, which
// scopes the modules they can be granted permissions in.
type Role struct {
	ID          int64
	CompanyID   int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
