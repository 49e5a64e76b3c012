package lifecycle

import "github.com/google/uuid"

// Actor is the resolved {user, role} identity every operation requires.
// Identity resolution itself happens outside this core (JWT middleware).
type Actor struct {
	ID   uuid.UUID
	Role Role
}
