package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vedran77/whiteboard/internal/config"
	"github.com/vedran77/whiteboard/internal/database"
	"github.com/vedran77/whiteboard/internal/logger"
	"github.com/vedran77/whiteboard/internal/migrate"
	postgresrepo "github.com/vedran77/whiteboard/internal/repository/postgres"
	"github.com/vedran77/whiteboard/internal/service"
	"github.com/vedran77/whiteboard/internal/transport/http/handlers"
	"github.com/vedran77/whiteboard/internal/transport/http/middleware"
	"github.com/vedran77/whiteboard/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN()); err != nil {
		log.Fatal("migrate up", zap.Error(err))
	}

	// Database
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	log.Info("connected to database")

	// Repositories
	db := postgresrepo.NewDB(pool)
	roomRepo := postgresrepo.NewRoomRepo(db)
	userRepo := postgresrepo.NewUserRepo(db)
	elementRepo := postgresrepo.NewElementRepo(db)

	// Services
	identityService := service.NewIdentityService()
	roomService := service.NewRoomService(roomRepo, userRepo)
	elementService := service.NewElementService(elementRepo)

	// WebSocket hub
	hub := ws.NewHub(roomService, elementService, identityService, log, cfg.WSSendBuffer)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)
	elementService.SetNotifier(ws.NewHubNotifier(hub))

	// Handlers
	healthHandler := handlers.NewHealthHandler(cfg.AppEnv)
	roomHandler := handlers.NewRoomHandler(roomService, elementService, log)

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", healthHandler.Check)
	mux.HandleFunc("POST /api/rooms", roomHandler.Create)
	mux.HandleFunc("GET /api/rooms/{id}", roomHandler.Get)
	mux.HandleFunc("GET /api/rooms/{id}/elements", roomHandler.ListElements)
	mux.HandleFunc("DELETE /api/rooms/{id}/elements", roomHandler.ClearElements)
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.AllowedOrigins))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           middleware.Logging(log)(middleware.CORS(cfg.AllowedOrigins)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
		stopHub()
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stopHub()
			pool.Close()
			os.Exit(1)
		}
	}

	log.Info("shutdown complete")
}
