// Package notify is the fan-out layer: it wraps domain events in the
// wire envelope once and routes them through the room and identity
// indexes. Delivery is fire-and-forget; a dead or slow receiver never
// stops the rest of the room.
package notify

import (
	"log/slog"

	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/transport"
	"github.com/google/uuid"
)

type Notifier struct {
	state  state.Manager
	logger *slog.Logger
}

func New(manager state.Manager, logger *slog.Logger) *Notifier {
	return &Notifier{
		state:  manager,
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// Room sends an event to every member of a room.
func (n *Notifier) Room(roomID string, event protocol.EventType, data any) {
	n.RoomExcept(roomID, uuid.Nil, event, data)
}

// RoomExcept sends to every member of a room but one connection, used
// when the excluded connection already got a richer direct answer.
func (n *Notifier) RoomExcept(roomID string, exclude uuid.UUID, event protocol.EventType, data any) {
	payload, ok := n.encode(event, data)
	if !ok {
		return
	}
	conns, err := n.state.RoomConnections(roomID)
	if err != nil {
		// The room being gone already is normal during teardown.
		n.logger.Debug("Broadcast to missing room skipped",
			slog.String("roomID", roomID),
			slog.String("event", string(event)),
		)
		return
	}
	delivered := 0
	for _, conn := range conns {
		if conn.Transport == nil || conn.ID == exclude {
			continue
		}
		conn.Transport.Send(payload)
		delivered++
	}
	n.logger.Debug("Event broadcast",
		slog.String("roomID", roomID),
		slog.String("event", string(event)),
		slog.Int("receivers", delivered),
	)
}

// RoomExceptIdentity sends to every member of a room except all
// connections of one identity: the room-wide half of an actor/room event
// pair.
func (n *Notifier) RoomExceptIdentity(roomID, identityID string, event protocol.EventType, data any) {
	payload, ok := n.encode(event, data)
	if !ok {
		return
	}
	conns, err := n.state.RoomConnections(roomID)
	if err != nil {
		n.logger.Debug("Broadcast to missing room skipped",
			slog.String("roomID", roomID),
			slog.String("event", string(event)),
		)
		return
	}
	for _, conn := range conns {
		if conn.Transport == nil {
			continue
		}
		if conn.Identity != nil && conn.Identity.ID == identityID {
			continue
		}
		conn.Transport.Send(payload)
	}
}

// Identity whispers an event to every connection of one identity,
// wherever it is connected.
func (n *Notifier) Identity(identityID string, event protocol.EventType, data any) {
	payload, ok := n.encode(event, data)
	if !ok {
		return
	}
	for _, transportConn := range n.state.IdentityConnections(identityID) {
		transportConn.Send(payload)
	}
}

// Direct sends an event to exactly one connection, bypassing the indexes.
func (n *Notifier) Direct(conn *transport.Connection, event protocol.EventType, data any) {
	payload, ok := n.encode(event, data)
	if !ok {
		return
	}
	conn.Send(payload)
}

func (n *Notifier) encode(event protocol.EventType, data any) ([]byte, bool) {
	payload, err := protocol.Encode(event, data)
	if err != nil {
		n.logger.Error("Failed to encode event",
			slog.String("event", string(event)),
			slog.Any("error", err),
		)
		return nil, false
	}
	return payload, true
}
