package statemanager_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state/statemanager"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/transport"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestManager() *statemanager.InMemoryManager {
	return statemanager.NewInMemoryManager(newTestLogger())
}

func newTransportConn() *transport.Connection {
	// We never run the pumps in these tests, so the websocket conn and
	// handlers can be nil.
	logger := newTestLogger()
	var wg sync.WaitGroup
	return transport.NewConnection(context.Background(), &wg, nil, transport.ConnectionConfig{}, nil, nil, logger)
}

// --- Connection Lifecycle Tests ---

func TestConnectionLifecycle(t *testing.T) {
	m := newTestManager()
	conn := newTransportConn()

	// 1. Register
	stateConn, err := m.RegisterConnection(conn, "127.0.0.1")
	if err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	if stateConn.ID != conn.ID() {
		t.Errorf("Registered connection ID mismatch")
	}

	// 2. Get
	retrievedConn, found := m.GetConnection(conn.ID())
	if !found {
		t.Fatal("GetConnection failed to find registered connection")
	}
	if retrievedConn.ID != conn.ID() {
		t.Errorf("Retrieved connection ID mismatch")
	}

	// 3. Deregister returns the removed record
	removed, err := m.DeregisterConnection(conn.ID())
	if err != nil {
		t.Fatalf("DeregisterConnection failed: %v", err)
	}
	if removed == nil || removed.ID != conn.ID() {
		t.Errorf("DeregisterConnection did not return the removed record")
	}
	_, found = m.GetConnection(conn.ID())
	if found {
		t.Error("Found connection after it should have been deregistered")
	}

	// 4. Deregistering again is a harmless no-op
	removed, err = m.DeregisterConnection(conn.ID())
	if err != nil || removed != nil {
		t.Errorf("Second DeregisterConnection should be a no-op, got (%v, %v)", removed, err)
	}
}

func TestRegisterConnectionTwice(t *testing.T) {
	m := newTestManager()
	conn := newTransportConn()

	if _, err := m.RegisterConnection(conn, "127.0.0.1"); err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	_, err := m.RegisterConnection(conn, "127.0.0.1")
	if !errors.Is(err, state.ErrConnectionExists) {
		t.Errorf("Expected ErrConnectionExists, got %v", err)
	}
}

func TestConnectionCountByIP(t *testing.T) {
	m := newTestManager()
	conn1, conn2, conn3 := newTransportConn(), newTransportConn(), newTransportConn()

	m.RegisterConnection(conn1, "10.0.0.1")
	m.RegisterConnection(conn2, "10.0.0.1")
	m.RegisterConnection(conn3, "10.0.0.2")

	if got := m.ConnectionCountByIP("10.0.0.1"); got != 2 {
		t.Errorf("Expected 2 connections from 10.0.0.1, got %d", got)
	}
	if got := m.ConnectionCountByIP("10.0.0.9"); got != 0 {
		t.Errorf("Expected 0 connections from unknown IP, got %d", got)
	}
}

// --- Identity Binding Tests ---

func TestAuthenticateAndConnectionCount(t *testing.T) {
	m := newTestManager()
	id := state.Identity{ID: "player-1", Username: "alice"}
	conn1 := newTransportConn()
	conn2 := newTransportConn()

	m.RegisterConnection(conn1, "1.1.1.1")
	m.RegisterConnection(conn2, "2.2.2.2")

	// Bind first connection
	bound, err := m.Authenticate(conn1.ID(), id)
	if err != nil {
		t.Fatalf("Authenticate (1) failed: %v", err)
	}
	if bound.Identity == nil || bound.Identity.ID != id.ID {
		t.Errorf("Expected identity %s on connection, got %+v", id.ID, bound.Identity)
	}

	if count := m.IdentityConnectionCount(id.ID); count != 1 {
		t.Errorf("Expected connection count 1, got %d", count)
	}

	// Bind second connection to the same identity
	if _, err = m.Authenticate(conn2.ID(), id); err != nil {
		t.Fatalf("Authenticate (2) failed: %v", err)
	}
	if count := m.IdentityConnectionCount(id.ID); count != 2 {
		t.Errorf("Expected connection count 2, got %d", count)
	}
	if conns := m.IdentityConnections(id.ID); len(conns) != 2 {
		t.Errorf("Expected 2 transports for identity, got %d", len(conns))
	}

	// Deregister one connection
	m.DeregisterConnection(conn1.ID())
	if count := m.IdentityConnectionCount(id.ID); count != 1 {
		t.Errorf("Expected connection count 1 after deregister, got %d", count)
	}
}

func TestAuthenticateUnknownConnection(t *testing.T) {
	m := newTestManager()
	conn := newTransportConn() // never registered

	_, err := m.Authenticate(conn.ID(), state.Identity{ID: "ghost"})
	if !errors.Is(err, state.ErrConnectionNotFound) {
		t.Errorf("Expected ErrConnectionNotFound, got %v", err)
	}
}

func TestOldestIdentityConnection(t *testing.T) {
	m := newTestManager()
	id := state.Identity{ID: "player-cycle", Username: "bob"}
	conn1 := newTransportConn()
	conn2 := newTransportConn()

	m.RegisterConnection(conn1, "1.1.1.1")
	time.Sleep(5 * time.Millisecond) // Ensure registration timestamps differ
	m.RegisterConnection(conn2, "2.2.2.2")
	m.Authenticate(conn1.ID(), id)
	m.Authenticate(conn2.ID(), id)

	oldest, found := m.OldestIdentityConnection(id.ID)
	if !found {
		t.Fatal("Expected to find oldest connection, but did not")
	}
	if oldest.ID != conn1.ID() {
		t.Errorf("Expected oldest connection ID to be %s, got %s", conn1.ID(), oldest.ID)
	}
}

// --- Liveness Tests ---

func TestTouchAndStale(t *testing.T) {
	m := newTestManager()
	conn1, conn2 := newTransportConn(), newTransportConn()
	m.RegisterConnection(conn1, "1.1.1.1")
	m.RegisterConnection(conn2, "2.2.2.2")

	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()
	m.Touch(conn2.ID())

	stale := m.Stale(cutoff)
	if len(stale) != 1 {
		t.Fatalf("Expected 1 stale connection, got %d", len(stale))
	}
	if stale[0].ID != conn1.ID() {
		t.Errorf("Expected %s to be stale, got %s", conn1.ID(), stale[0].ID)
	}
}

// --- Room Management Tests ---

func TestRoomMembership(t *testing.T) {
	m := newTestManager()
	roomID := "test-room"
	conn1, conn2 := newTransportConn(), newTransportConn()
	m.RegisterConnection(conn1, "1.1.1.1")
	m.RegisterConnection(conn2, "2.2.2.2")

	if _, err := m.CreateRoom(roomID, 8); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	// Join
	if err := m.Join(roomID, conn1.ID()); err != nil {
		t.Fatalf("conn1 failed to join room: %v", err)
	}
	if err := m.Join(roomID, conn2.ID()); err != nil {
		t.Fatalf("conn2 failed to join room: %v", err)
	}

	// Joining again is a no-op
	if err := m.Join(roomID, conn1.ID()); err != nil {
		t.Fatalf("Re-joining should be a no-op, got: %v", err)
	}

	// Resolve members
	members, err := m.RoomConnections(roomID)
	if err != nil {
		t.Fatalf("RoomConnections failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("Expected 2 members in room, got %d", len(members))
	}

	// Leave
	if err := m.Leave(roomID, conn1.ID()); err != nil {
		t.Fatalf("conn1 failed to leave room: %v", err)
	}
	members, _ = m.RoomConnections(roomID)
	if len(members) != 1 {
		t.Fatalf("Expected 1 member after leave, got %d", len(members))
	}
	if members[0].ID != conn2.ID() {
		t.Errorf("Expected remaining member to be %s, got %s", conn2.ID(), members[0].ID)
	}

	// Test empty room cleanup
	m.Leave(roomID, conn2.ID())
	if _, found := m.FindRoom(roomID); found {
		t.Error("Expected room to be deleted after last member left, but it was found")
	}
}

func TestRoomCapacity(t *testing.T) {
	m := newTestManager()
	roomID := "small-room"
	m.CreateRoom(roomID, 2)

	conns := []*transport.Connection{newTransportConn(), newTransportConn(), newTransportConn()}
	for i, c := range conns {
		m.RegisterConnection(c, "9.9.9."+strconv.Itoa(i))
	}

	if err := m.Join(roomID, conns[0].ID()); err != nil {
		t.Fatalf("Join (1) failed: %v", err)
	}
	if err := m.Join(roomID, conns[1].ID()); err != nil {
		t.Fatalf("Join (2) failed: %v", err)
	}
	err := m.Join(roomID, conns[2].ID())
	if !errors.Is(err, state.ErrRoomFull) {
		t.Errorf("Expected ErrRoomFull, got %v", err)
	}
}

func TestJoinValidation(t *testing.T) {
	m := newTestManager()
	conn := newTransportConn()
	m.RegisterConnection(conn, "1.1.1.1")

	if err := m.Join("no-such-room", conn.ID()); !errors.Is(err, state.ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}

	m.CreateRoom("a-room", 4)
	ghost := newTransportConn()
	if err := m.Join("a-room", ghost.ID()); !errors.Is(err, state.ErrConnectionNotFound) {
		t.Errorf("Expected ErrConnectionNotFound, got %v", err)
	}
}

func TestCreateRoomTwice(t *testing.T) {
	m := newTestManager()
	if _, err := m.CreateRoom("dup", 4); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, err := m.CreateRoom("dup", 4); !errors.Is(err, state.ErrRoomExists) {
		t.Errorf("Expected ErrRoomExists, got %v", err)
	}
}

func TestDeregisterCleansRooms(t *testing.T) {
	m := newTestManager()
	conn1, conn2 := newTransportConn(), newTransportConn()
	m.RegisterConnection(conn1, "1.1.1.1")
	m.RegisterConnection(conn2, "2.2.2.2")
	m.CreateRoom("room-a", 4)
	m.CreateRoom("room-b", 4)
	m.Join("room-a", conn1.ID())
	m.Join("room-b", conn1.ID())
	m.Join("room-a", conn2.ID())

	removed, _ := m.DeregisterConnection(conn1.ID())
	if removed == nil {
		t.Fatal("DeregisterConnection returned nil for a registered connection")
	}
	if _, ok := removed.Rooms["room-a"]; !ok {
		t.Error("Removed record should still list its room memberships")
	}

	// room-b had only conn1, so it should be gone entirely.
	if _, found := m.FindRoom("room-b"); found {
		t.Error("Expected room-b to be deleted after its only member deregistered")
	}
	members, err := m.RoomConnections("room-a")
	if err != nil {
		t.Fatalf("RoomConnections failed: %v", err)
	}
	if len(members) != 1 || members[0].ID != conn2.ID() {
		t.Errorf("Expected room-a to contain only conn2, got %d members", len(members))
	}
}

func TestDeleteRoomDetachesMembers(t *testing.T) {
	m := newTestManager()
	conn := newTransportConn()
	m.RegisterConnection(conn, "1.1.1.1")
	m.CreateRoom("doomed", 4)
	m.Join("doomed", conn.ID())

	m.DeleteRoom("doomed")

	if _, found := m.FindRoom("doomed"); found {
		t.Error("Expected room to be gone after DeleteRoom")
	}
	rec, _ := m.GetConnection(conn.ID())
	if _, ok := rec.Rooms["doomed"]; ok {
		t.Error("Expected connection record to forget the deleted room")
	}
}

// --- Concurrency ---

func TestConcurrentJoinLeave(t *testing.T) {
	m := newTestManager()
	roomID := "busy-room"
	m.CreateRoom(roomID, 0) // unbounded

	numGoroutines := 100
	conns := make([]*transport.Connection, numGoroutines)
	for i := range conns {
		conns[i] = newTransportConn()
		m.RegisterConnection(conns[i], "3.3.3."+strconv.Itoa(i%10))
	}

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := m.Join(roomID, conns[i].ID()); err != nil {
				t.Errorf("Join failed: %v", err)
			}
			m.Touch(conns[i].ID())
			if i%2 == 0 {
				m.Leave(roomID, conns[i].ID())
			}
		}(i)
	}
	wg.Wait()

	members, err := m.RoomConnections(roomID)
	if err != nil {
		t.Fatalf("RoomConnections failed: %v", err)
	}
	if len(members) != numGoroutines/2 {
		t.Errorf("Expected %d members after churn, got %d", numGoroutines/2, len(members))
	}
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	m := newTestManager()
	roomID := "full-house"
	const capacity = 5
	m.CreateRoom(roomID, capacity)

	numGoroutines := 50
	conns := make([]*transport.Connection, numGoroutines)
	for i := range conns {
		conns[i] = newTransportConn()
		m.RegisterConnection(conns[i], "4.4.4."+strconv.Itoa(i%10))
	}

	var wg sync.WaitGroup
	var admitted, rejected atomic.Int64
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch err := m.Join(roomID, conns[i].ID()); {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, state.ErrRoomFull):
				rejected.Add(1)
			default:
				t.Errorf("Unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if admitted.Load() != capacity {
		t.Errorf("Expected exactly %d admissions, got %d", capacity, admitted.Load())
	}
	if rejected.Load() != int64(numGoroutines-capacity) {
		t.Errorf("Expected %d rejections, got %d", numGoroutines-capacity, rejected.Load())
	}
	members, err := m.RoomConnections(roomID)
	if err != nil {
		t.Fatalf("RoomConnections failed: %v", err)
	}
	if len(members) != capacity {
		t.Errorf("Room holds %d members, capacity is %d", len(members), capacity)
	}
}
