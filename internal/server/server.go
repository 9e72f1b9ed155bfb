package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/effects"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/game"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/identity"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/notify"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/router"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/server/middleware"
	"github.com/HugoBiegas/Mastermind-backend-sub000/internal/storage"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/config"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/protocol"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/state/statemanager"
	"github.com/HugoBiegas/Mastermind-backend-sub000/pkg/transport"
)

// The coordinator broadcasts through this surface.
var _ game.Notifier = (*notify.Notifier)(nil)

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	notifier     *notify.Notifier
	games        *game.Coordinator
	msgRouter    *router.Router
	store        storage.Store
	wg           sync.WaitGroup
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, store storage.Store) *App {
	stateManager := statemanager.NewInMemoryManager(logger)
	notifier := notify.New(stateManager, logger)
	scheduler := effects.NewScheduler(logger)
	games := game.NewCoordinator(cfg, stateManager, scheduler, store, notifier, logger)
	provider := identity.NewJWTProvider(cfg.Auth.JWTSecret, logger)
	msgRouter := router.New(logger, stateManager, provider, games, notifier, cfg)

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		notifier:     notifier,
		games:        games,
		msgRouter:    msgRouter,
		store:        store,
		config:       cfg,
		ctx:          rootCtx,
	}

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewConnectionLimiter(
				logger,
				stateManager.ConnectionCountByIP,
				app.config.Server.ConnectionLimit,
			),
		),
	)

	app.http = &http.Server{Addr: app.config.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()
	go a.maintenanceLoop()

	<-a.ctx.Done()
	return a.Shutdown()
}

// maintenanceLoop periodically drops connections that stopped talking and
// lets the coordinator settle time-based state: disconnect graces, expired
// effects, abandoned rooms.
func (a *App) maintenanceLoop() {
	ticker := time.NewTicker(a.config.Liveness.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case now := <-ticker.C:
			cutoff := now.Add(-a.config.Liveness.Timeout)
			for _, conn := range a.stateManager.Stale(cutoff) {
				a.logger.Info("Closing unresponsive connection",
					slog.String("connID", conn.ID.String()),
					slog.Time("lastSeen", conn.LastSeen),
				)
				if conn.Transport != nil {
					conn.Transport.Close(errors.New("liveness timeout"))
				}
			}
			a.games.Sweep(a.ctx, now)
		}
	}
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		nil,
		nil,
		a.logger,
	)
	stateConn, err := a.stateManager.RegisterConnection(conn, reqMeta.IP)
	if err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}

	conn.SetOnMessageHandler(a.msgRouter.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		removed, dErr := a.stateManager.DeregisterConnection(id)
		if dErr != nil {
			connLogger.Error("Failed to deregister connection from state", slog.Any("error", dErr))
			return
		}
		a.games.ConnectionClosed(removed)
	})

	// Queued before the pumps start, so it is the first frame out.
	a.notifier.Direct(conn, protocol.EvtConnectionEstablished, &protocol.ConnectionEstablishedData{
		ConnectionID: stateConn.ID.String(),
	})

	connLogger.Info("Connection registered", slog.String("connID", stateConn.ID.String()))
	conn.Run()
	<-conn.Done()
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.stateManager.AllConnections() {
		if conn.Transport != nil {
			conn.Transport.Close(errors.New("graceful shutdown"))
		}
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.msgRouter.Shutdown()
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close storage", slog.Any("error", err))
	}
	a.logger.Info("Server shut down gracefully.")
	return nil
}
