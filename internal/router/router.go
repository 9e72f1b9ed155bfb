// Package router decodes inbound frames and dispatches them through the
// closed command catalog. Every command is either handled, rejected with
// a typed error event to its origin, or flattened to a generic failure;
// nothing falls through silently.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/game"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/identity"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/notify"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/config"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
)

type Router struct {
	logger   *slog.Logger
	state    state.Manager
	provider identity.Provider
	games    *game.Coordinator
	notifier *notify.Notifier
	limiter  *RateLimiter
	cfg      *config.Config
}

func New(logger *slog.Logger, manager state.Manager, provider identity.Provider, games *game.Coordinator, notifier *notify.Notifier, cfg *config.Config) *Router {
	return &Router{
		logger:   logger.With(slog.String("component", "router")),
		state:    manager,
		provider: provider,
		games:    games,
		notifier: notifier,
		limiter:  NewRateLimiter(logger),
		cfg:      cfg,
	}
}

// Shutdown cancels the rate limiter's outstanding window timers.
func (r *Router) Shutdown() {
	r.limiter.Stop()
}

// HandleMessage is the transport's inbound callback. Any inbound frame,
// whatever its fate, refreshes the connection's liveness.
func (r *Router) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	r.state.Touch(connID)
	conn, ok := r.state.GetConnection(connID)
	if !ok {
		r.logger.Warn("Message from unknown connection", slog.String("connID", connID.String()))
		return
	}

	env, err := protocol.Decode(msg)
	if err != nil {
		r.reject(conn, game.Errorf(game.CodeValidation, "malformed message: %v", err))
		return
	}

	cmd := protocol.CommandType(env.Type)
	if cmd.RequiresAuth() && conn.Identity == nil {
		r.reject(conn, game.Errorf(game.CodeAuth, "authenticate before sending %s", cmd))
		return
	}

	if err := r.dispatch(ctx, conn, cmd, env.Data); err != nil {
		r.fail(conn, cmd, err)
	}
}

func (r *Router) dispatch(ctx context.Context, conn *state.Connection, cmd protocol.CommandType, data json.RawMessage) error {
	switch cmd {
	case protocol.CmdAuthenticate:
		return r.handleAuthenticate(ctx, conn, data)

	case protocol.CmdHeartbeat:
		r.notifier.Direct(conn.Transport, protocol.EvtHeartbeat, &protocol.HeartbeatData{
			Timestamp: protocol.UnixTimestamp(time.Now()),
		})
		return nil

	case protocol.CmdJoinRoom:
		var p protocol.JoinRoomPayload
		if err := unmarshalPayload(data, &p); err != nil {
			return err
		}
		snapshot, err := r.games.Join(ctx, p.RoomID, conn)
		if err != nil {
			return err
		}
		r.notifier.Direct(conn.Transport, protocol.EvtGameState, snapshot)
		return nil

	case protocol.CmdLeaveRoom:
		var p protocol.LeaveRoomPayload
		if err := unmarshalPayload(data, &p); err != nil {
			return err
		}
		return r.games.Leave(ctx, p.RoomID, conn)

	case protocol.CmdStartGame:
		var p protocol.StartGamePayload
		if err := unmarshalPayload(data, &p); err != nil {
			return err
		}
		return r.games.Start(ctx, p.SessionID, conn.Identity.ID)

	case protocol.CmdMakeAttempt:
		var p protocol.MakeAttemptPayload
		if err := unmarshalPayload(data, &p); err != nil {
			return err
		}
		if !r.limiter.Allow(conn.Identity.ID, string(cmd), r.cfg.Game.AttemptsPerMinute, time.Minute) {
			return game.Errorf(game.CodeValidation, "attempt rate limit exceeded, slow down")
		}
		// The coordinator whispers the result to the actor's identity.
		_, err := r.games.SubmitAttempt(ctx, p.SessionID, conn.Identity.ID, p.Guess)
		return err

	case protocol.CmdUseItem:
		var p protocol.UseItemPayload
		if err := unmarshalPayload(data, &p); err != nil {
			return err
		}
		_, err := r.games.UseItem(ctx, p.SessionID, conn.Identity.ID, p.ItemType, p.Targets)
		return err

	case protocol.CmdChatMessage:
		var p protocol.ChatMessagePayload
		if err := unmarshalPayload(data, &p); err != nil {
			return err
		}
		if !r.limiter.Allow(conn.Identity.ID, string(cmd), r.cfg.Game.Chat.PerMinute, time.Minute) {
			return game.Errorf(game.CodeValidation, "chat rate limit exceeded, slow down")
		}
		return r.games.Chat(ctx, p.RoomID, conn.Identity.ID, p.Text)

	case protocol.CmdGetGameState:
		var p protocol.GetGameStatePayload
		if err := unmarshalPayload(data, &p); err != nil {
			return err
		}
		snapshot, err := r.games.Snapshot(p.SessionID, conn.Identity.ID)
		if err != nil {
			return err
		}
		r.notifier.Direct(conn.Transport, protocol.EvtGameState, snapshot)
		return nil

	default:
		return game.Errorf(game.CodeValidation, "unknown command type %q", string(cmd))
	}
}

// handleAuthenticate verifies the presented credential, enforces the
// per-identity connection budget, and binds the identity to the
// connection. A bad credential leaves the connection open and anonymous.
func (r *Router) handleAuthenticate(ctx context.Context, conn *state.Connection, data json.RawMessage) error {
	credential := gjson.GetBytes(data, "credential").String()
	if credential == "" {
		return game.Errorf(game.CodeValidation, "authenticate requires a credential")
	}

	id, err := r.provider.Verify(ctx, credential)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredential) {
			r.logger.Warn("Authentication failed", slog.String("connID", conn.ID.String()))
			r.notifier.Direct(conn.Transport, protocol.EvtAuthenticationFailed, &protocol.AuthenticationFailedData{
				Reason: "invalid credential",
			})
			return nil
		}
		return fmt.Errorf("verifying credential: %w", err)
	}

	budget := r.cfg.Server.ConnectionLimit.MaxPerIdentity
	if budget > 0 && r.state.IdentityConnectionCount(id.ID) >= budget {
		if r.cfg.Server.ConnectionLimit.Mode == "cycle" {
			if oldest, ok := r.state.OldestIdentityConnection(id.ID); ok && oldest.ID != conn.ID {
				r.logger.Info("Cycling oldest connection for identity",
					slog.String("identityID", id.ID),
					slog.String("cycledConnID", oldest.ID.String()),
				)
				oldest.Transport.Close(errors.New("connection cycled by a newer login"))
			}
		} else {
			r.notifier.Direct(conn.Transport, protocol.EvtAuthenticationFailed, &protocol.AuthenticationFailedData{
				Reason: "too many active connections",
			})
			return nil
		}
	}

	if _, err := r.state.Authenticate(conn.ID, id); err != nil {
		return fmt.Errorf("binding identity: %w", err)
	}

	r.notifier.Direct(conn.Transport, protocol.EvtAuthenticationSuccess, &protocol.AuthenticationSuccessData{
		PlayerID: id.ID,
		Username: id.Username,
	})
	r.logger.Info("Connection authenticated",
		slog.String("connID", conn.ID.String()),
		slog.String("identityID", id.ID),
	)
	return nil
}

// reject reports an expected domain failure to the origin only; room and
// session state were left untouched by the handler.
func (r *Router) reject(conn *state.Connection, domainErr *game.Error) {
	r.notifier.Direct(conn.Transport, protocol.EvtError, &protocol.ErrorData{
		ErrorCode: string(domainErr.Code),
		Message:   domainErr.Message,
	})
}

// fail maps a handler error onto the wire: typed rejections keep their
// code and message, anything unexpected is logged with its real cause and
// flattened so internals never leak to clients.
func (r *Router) fail(conn *state.Connection, cmd protocol.CommandType, err error) {
	var domainErr *game.Error
	if errors.As(err, &domainErr) {
		r.reject(conn, domainErr)
		return
	}
	r.logger.Error("Command handler failed",
		slog.String("command", string(cmd)),
		slog.String("connID", conn.ID.String()),
		slog.Any("error", err),
	)
	r.reject(conn, game.Errorf(game.CodeState, "internal error handling %s", cmd))
}

func unmarshalPayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return game.Errorf(game.CodeValidation, "command requires a payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return game.Errorf(game.CodeValidation, "malformed payload: %v", err)
	}
	return nil
}
