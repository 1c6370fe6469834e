package syncx

import "github.com/google/uuid"

// Owner identifies the holder of an exclusive acquisition.
type Owner uuid.UUID

// NoOwner is the zero Owner. It never holds anything.
var NoOwner Owner

// NewOwner returns a fresh random owner identity.
func NewOwner() Owner {
	return Owner(uuid.New())
}

func (o Owner) String() string {
	return uuid.UUID(o).String()
}
