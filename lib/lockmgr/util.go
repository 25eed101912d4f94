package lockmgr

import "github.com/google/uuid"

// generateOwnerID creates a new unique owner ID (a random UUID in its string form)
func generateOwnerID() []byte {
	return []byte(uuid.NewString())
}
