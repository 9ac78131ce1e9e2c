package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/scenyx-rooms/internal/api/scenes"
	"github.com/Vasu1712/scenyx-rooms/internal/audit"
	"github.com/Vasu1712/scenyx-rooms/internal/auth"
	"github.com/Vasu1712/scenyx-rooms/internal/config"
	"github.com/Vasu1712/scenyx-rooms/internal/editor"
	"github.com/Vasu1712/scenyx-rooms/internal/liveness"
	"github.com/Vasu1712/scenyx-rooms/internal/logging"
	"github.com/Vasu1712/scenyx-rooms/internal/middleware"
	"github.com/Vasu1712/scenyx-rooms/internal/room"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
	"github.com/Vasu1712/scenyx-rooms/internal/storage/memory"
	"github.com/Vasu1712/scenyx-rooms/internal/storage/valkey"
	"github.com/Vasu1712/scenyx-rooms/internal/ws"
)

// backends are the stores a deployment can move out of process.
type backends struct {
	sessions  storage.SessionStore
	audit     storage.AuditLog
	userState storage.UserStateStore
	giveaways storage.GiveawayStore
	presence  storage.Presence
	close     func()
}

func main() {
	dotenv := config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	log := logger.Startup()
	if !dotenv {
		log.Info("[Startup] No .env file found, using environment")
	}
	if cfg.IsProduction() && slices.Contains(cfg.AllowedOrigins, "*") {
		log.Warn("[Startup] Production node accepts any origin", "origins", cfg.AllowedOrigins)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sceneStore := memory.NewSceneStore()
	be, err := openBackends(ctx, cfg, logger, sceneStore)
	if err != nil {
		log.Error("[Startup] Failed to open stores", "error", err)
		os.Exit(1)
	}
	defer be.close()

	users := memory.NewUserStore()
	recorder := audit.NewRecorder(be.audit, logger.Audit())
	authn := &auth.Authenticator{
		Validator: auth.NewJWTValidator(cfg.JWTSecret),
		Sessions:  be.sessions,
		Users:     users,
		Log:       logger.Auth(),
	}

	svc := &room.Services{
		Auth:         authn,
		Scenes:       sceneStore,
		UserState:    be.userState,
		Sessions:     be.sessions,
		Users:        users,
		Giveaways:    be.giveaways,
		Editor:       &editor.Coordinator{Scenes: sceneStore, Audit: recorder, Log: logger.Room()},
		Audit:        recorder,
		Checker:      liveness.NewHTTPChecker(cfg.ProbeTimeout, logger.Liveness()),
		Router:       room.NewRouter(logger.Room()),
		Log:          logger,
		TickInterval: cfg.TickInterval,
	}

	rooms := room.NewManager(ctx, svc, be.presence, cfg.NodeID, cfg.PresenceTTL)
	go rooms.RenewLeases(ctx)

	hub := ws.NewHub(logger.Transport())
	go hub.Run(ctx)

	handler := scenes.NewSceneHandler(scenes.SceneHandler{
		Auth:   authn,
		Rooms:  rooms,
		Hub:    hub,
		Scenes: sceneStore,
		Audit:  recorder,
		NodeID: cfg.NodeID,
		Log:    logger.HTTP(),
	}, cfg.AllowedOrigins)

	router := mux.NewRouter()
	scenes.RegisterSceneRoutes(router, handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           middleware.CORS(cfg.AllowedOrigins, logger.HTTP())(middleware.RequestLog(logger.HTTP())(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("[Startup] Server started", "addr", srv.Addr, "node", cfg.NodeID, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("[Startup] Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("[Startup] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("[Startup] HTTP shutdown incomplete", "error", err)
	}
	rooms.Shutdown(shutdownCtx)
	log.Info("[Startup] Stopped")
}

// openBackends uses Valkey when VALKEY_ADDR is set and process memory otherwise.
func openBackends(ctx context.Context, cfg *config.Config, logger *logging.Logger, sceneStore *memory.SceneStore) (*backends, error) {
	if cfg.ValkeyAddr == "" {
		logger.Startup().Info("[Startup] Using in-memory stores")
		return &backends{
			sessions:  memory.NewSessionStore(),
			audit:     memory.NewAuditLog(),
			userState: sceneStore,
			giveaways: memory.NewGiveawayStore(),
			presence:  memory.NewPresence(),
			close:     func() {},
		}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := valkey.Connect(connectCtx, valkey.Options{Addr: cfg.ValkeyAddr, Password: cfg.ValkeyPassword, DB: cfg.ValkeyDB})
	if err != nil {
		return nil, err
	}
	logger.Startup().Info("[Startup] Connected to Valkey", "addr", cfg.ValkeyAddr, "db", cfg.ValkeyDB)
	return &backends{
		sessions:  valkey.NewSessionStore(client),
		audit:     valkey.NewAuditLog(client),
		userState: valkey.NewUserStateStore(client),
		giveaways: valkey.NewGiveawayStore(client),
		presence:  valkey.NewPresence(client),
		close:     client.Close,
	}, nil
}
