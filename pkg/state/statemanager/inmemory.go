package statemanager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/transport"
	"github.com/google/uuid"
)

// InMemoryManager keeps all connection and room state in process memory.
// Records reference each other by id only, so removing a connection is a
// matter of deleting its id from the maps that mention it.
//
// Lock order: connMu, then identMu, then roomMu. Never the reverse.
type InMemoryManager struct {
	conns  map[uuid.UUID]*state.Connection
	idents map[string]map[uuid.UUID]*state.Connection
	rooms  map[string]*state.Room

	connMu  sync.RWMutex
	identMu sync.RWMutex
	roomMu  sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		conns:  make(map[uuid.UUID]*state.Connection),
		idents: make(map[string]map[uuid.UUID]*state.Connection),
		rooms:  make(map[string]*state.Room),
		logger: logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

// --- Connection Lifecycle ---

func (m *InMemoryManager) RegisterConnection(conn *transport.Connection, ipAddr string) (*state.Connection, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	connID := conn.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, state.ErrConnectionExists
	}
	now := time.Now()
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: conn,
		Rooms:     make(map[string]struct{}),
		CreatedAt: now,
		LastSeen:  now,
	}
	m.conns[connID] = newConn
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()), slog.String("ip", ipAddr))
	return newConn, nil
}

func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) (*state.Connection, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		// Already deregistered; Close paths can race here harmlessly.
		return nil, nil
	}
	delete(m.conns, connID)

	// Detach from the identity index.
	if conn.Identity != nil {
		m.identMu.Lock()
		if bucket, ok := m.idents[conn.Identity.ID]; ok {
			delete(bucket, connID)
			if len(bucket) == 0 {
				delete(m.idents, conn.Identity.ID)
			}
		}
		m.identMu.Unlock()
	}

	// Remove the id from every room that mentions it.
	m.roomMu.Lock()
	for roomID := range conn.Rooms {
		room, ok := m.rooms[roomID]
		if !ok {
			continue
		}
		delete(room.Members, connID)
		if len(room.Members) == 0 {
			delete(m.rooms, roomID)
			m.logger.Debug("Removed empty room", slog.String("roomID", roomID))
		}
	}
	m.roomMu.Unlock()

	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()))
	return conn, nil
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *InMemoryManager) AllConnections() []*state.Connection {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	conns := make([]*state.Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	return conns
}

func (m *InMemoryManager) ConnectionCountByIP(ip string) int {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	count := 0
	for _, c := range m.conns {
		if c.IPAddress == ip {
			count++
		}
	}
	return count
}

// --- Identity Binding ---

func (m *InMemoryManager) Authenticate(connID uuid.UUID, id state.Identity) (*state.Connection, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.identMu.Lock()
	defer m.identMu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, state.ErrConnectionNotFound
	}

	// Re-authenticating as someone else moves the connection between buckets.
	if conn.Identity != nil && conn.Identity.ID != id.ID {
		if bucket, ok := m.idents[conn.Identity.ID]; ok {
			delete(bucket, connID)
			if len(bucket) == 0 {
				delete(m.idents, conn.Identity.ID)
			}
		}
	}

	conn.Identity = &id
	bucket, exists := m.idents[id.ID]
	if !exists {
		bucket = make(map[uuid.UUID]*state.Connection)
		m.idents[id.ID] = bucket
	}
	bucket[connID] = conn

	m.logger.Debug("Connection authenticated", slog.String("connID", connID.String()), slog.String("identityID", id.ID))
	return conn, nil
}

func (m *InMemoryManager) IdentityConnections(identityID string) []*transport.Connection {
	m.identMu.RLock()
	defer m.identMu.RUnlock()

	bucket, ok := m.idents[identityID]
	if !ok {
		return nil
	}
	conns := make([]*transport.Connection, 0, len(bucket))
	for _, c := range bucket {
		conns = append(conns, c.Transport)
	}
	return conns
}

func (m *InMemoryManager) IdentityConnectionCount(identityID string) int {
	m.identMu.RLock()
	defer m.identMu.RUnlock()
	return len(m.idents[identityID])
}

func (m *InMemoryManager) OldestIdentityConnection(identityID string) (*state.Connection, bool) {
	m.identMu.RLock()
	defer m.identMu.RUnlock()

	bucket, ok := m.idents[identityID]
	if !ok {
		return nil, false
	}

	var oldest *state.Connection
	for _, conn := range bucket {
		if oldest == nil || conn.CreatedAt.Before(oldest.CreatedAt) {
			oldest = conn
		}
	}
	if oldest == nil {
		return nil, false
	}
	return oldest, true
}

// --- Liveness ---

func (m *InMemoryManager) Touch(connID uuid.UUID) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if conn, ok := m.conns[connID]; ok {
		conn.LastSeen = time.Now()
	}
}

func (m *InMemoryManager) Stale(cutoff time.Time) []*state.Connection {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	var stale []*state.Connection
	for _, c := range m.conns {
		if c.LastSeen.Before(cutoff) {
			stale = append(stale, c)
		}
	}
	return stale
}

// --- Room & Membership Management ---

func (m *InMemoryManager) CreateRoom(roomID string, capacity int) (*state.Room, error) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	if _, exists := m.rooms[roomID]; exists {
		return nil, state.ErrRoomExists
	}
	room := &state.Room{
		ID:        roomID,
		Capacity:  capacity,
		Members:   make(map[uuid.UUID]struct{}),
		CreatedAt: time.Now(),
	}
	m.rooms[roomID] = room
	m.logger.Debug("Room created", slog.String("roomID", roomID), slog.Int("capacity", capacity))
	return room, nil
}

func (m *InMemoryManager) FindRoom(roomID string) (*state.Room, bool) {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

func (m *InMemoryManager) DeleteRoom(roomID string) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return
	}
	for connID := range room.Members {
		if conn, ok := m.conns[connID]; ok {
			delete(conn.Rooms, roomID)
		}
	}
	delete(m.rooms, roomID)
	m.logger.Debug("Room deleted", slog.String("roomID", roomID))
}

func (m *InMemoryManager) Join(roomID string, connID uuid.UUID) error {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return state.ErrConnectionNotFound
	}
	room, ok := m.rooms[roomID]
	if !ok {
		return state.ErrRoomNotFound
	}

	// Joining a room the connection is already in is a no-op.
	if _, member := room.Members[connID]; member {
		return nil
	}
	if room.Capacity > 0 && len(room.Members) >= room.Capacity {
		return state.ErrRoomFull
	}

	room.Members[connID] = struct{}{}
	conn.Rooms[roomID] = struct{}{}

	m.logger.Debug("Connection joined room", slog.String("connID", connID.String()), slog.String("roomID", roomID))
	return nil
}

func (m *InMemoryManager) Leave(roomID string, connID uuid.UUID) error {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		m.logger.Warn("failed to leave room: room doesn't exist",
			slog.String("connID", connID.String()),
			slog.String("roomID", roomID),
		)
		return nil
	}

	delete(room.Members, connID)
	if conn, ok := m.conns[connID]; ok {
		delete(conn.Rooms, roomID)
	}

	// For memory hygiene, remove the room if it's now empty.
	if len(room.Members) == 0 {
		delete(m.rooms, roomID)
		m.logger.Debug("Removed empty room", slog.String("roomID", roomID))
	}

	m.logger.Debug("Connection left room", slog.String("connID", connID.String()), slog.String("roomID", roomID))
	return nil
}

func (m *InMemoryManager) RoomConnections(roomID string) ([]*state.Connection, error) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, state.ErrRoomNotFound
	}

	members := make([]*state.Connection, 0, len(room.Members))
	for connID := range room.Members {
		if conn, ok := m.conns[connID]; ok {
			members = append(members, conn)
		}
	}
	return members, nil
}
