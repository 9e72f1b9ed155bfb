package state

import (
	"errors"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/transport"
	"github.com/google/uuid"
)

var (
	ErrConnectionExists   = errors.New("connection is already registered")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrRoomExists         = errors.New("room already exists")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
)

// ConnectionRegistry tracks every live connection, its optional identity,
// and its liveness.
type ConnectionRegistry interface {
	// --- Connection Lifecycle ---
	RegisterConnection(conn *transport.Connection, ipAddr string) (*Connection, error)
	// DeregisterConnection is idempotent: it removes the connection from
	// every room it had joined and from the identity index, returning the
	// removed record (nil if the id was unknown).
	DeregisterConnection(connID uuid.UUID) (*Connection, error)
	GetConnection(connID uuid.UUID) (*Connection, bool)
	AllConnections() []*Connection
	ConnectionCountByIP(ip string) int

	// --- Identity Binding ---
	// Authenticate binds a verified identity to a connection and indexes
	// identity id -> connection ids.
	Authenticate(connID uuid.UUID, id Identity) (*Connection, error)
	IdentityConnections(identityID string) []*transport.Connection
	IdentityConnectionCount(identityID string) int
	OldestIdentityConnection(identityID string) (*Connection, bool)

	// --- Liveness ---
	// Touch refreshes the last-seen timestamp; every inbound command does.
	Touch(connID uuid.UUID)
	// Stale returns connections whose last-seen is before the cutoff.
	Stale(cutoff time.Time) []*Connection
}

// RoomDirectory tracks room membership. Rooms are created explicitly with
// a capacity and die when their membership reaches zero.
type RoomDirectory interface {
	CreateRoom(roomID string, capacity int) (*Room, error)
	FindRoom(roomID string) (*Room, bool)
	DeleteRoom(roomID string)
	// Join adds a connection to a room; joining a room the connection is
	// already in is a no-op. Fails with ErrRoomFull at capacity.
	Join(roomID string, connID uuid.UUID) error
	Leave(roomID string, connID uuid.UUID) error
	// RoomConnections resolves current members to connection records.
	RoomConnections(roomID string) ([]*Connection, error)
}

// Manager is the combined state surface the server wires once and shares.
type Manager interface {
	ConnectionRegistry
	RoomDirectory
}
