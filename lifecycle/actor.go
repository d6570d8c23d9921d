package lifecycle

import "civicfix-be/models"

// Actor is the authenticated principal performing an operation. Identity and
// role come from verified token claims and are passed explicitly into every
// manager call; the manager never reads them from ambient state.
type Actor struct {
	ID    string
	Email string
	Role  models.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// IsStaff reports whether the actor holds the staff role.
func (a Actor) IsStaff() bool { return a.Role == models.RoleStaff }
