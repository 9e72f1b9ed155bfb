package state

import (
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/transport"
	"github.com/google/uuid"
)

// Identity is the stable principal behind one or more connections,
// established once per connection via the identity provider.
type Identity struct {
	ID       string
	Username string
}

// Connection is the registry's record of a single transport-layer
// connection: a fixed id-keyed record instead of a pointer graph, so
// ownership between connections, rooms, and sessions stays unambiguous.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport *transport.Connection // The actual connection for sending messages
	Identity  *Identity             // nil until authenticated
	Rooms     map[string]struct{}   // ids of rooms this connection has joined
	CreatedAt time.Time
	LastSeen  time.Time
}

// Room is a broadcast group. It stores member connection ids only; the
// records live in the registry.
type Room struct {
	ID        string
	Capacity  int // 0 means unbounded
	Members   map[uuid.UUID]struct{}
	CreatedAt time.Time
}
