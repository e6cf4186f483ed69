package main

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/rest"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a server error.
// Deferred cleanups run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories, credentials & services
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	userRepository := repositories.NewUserRepository(db)
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(messageRepository, userRepository)

	// 4. Realtime core
	registry := runtime.NewRegistry()
	binder := auth.NewBinder(tokens, config.TokenCookie, log)
	orchestrator := runtime.NewOrchestrator(log, registry, binder, messageRepository,
		config.PingInterval, config.DeathTimeout)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	stats := workers.NewConnectionStatsWorker(log, registry, config.StatsInterval)
	sup.Add(
		workers.NewStorageGCWorker(log, db, config.GCInterval),
		stats,
	)
	if config.DebugPort > 0 {
		// Private inspection page, never exposed on the public address
		sup.Add(internal.NewDebugServer(log, db, fmt.Sprintf("localhost:%d", config.DebugPort),
			func() map[string]any {
				connections, online := stats.Stats()
				return map[string]any{"connections": connections, "online_users": online}
			}))
	}
	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervisorDone)
	}()

	// 7. HTTP Server Setup
	wsHandler := ws.NewHandler(log, orchestrator, ws.Options{
		SendBufferSize:    config.ConnectionBufferSize,
		InboundBufferSize: config.InboundBufferSize,
		WriteTimeout:      config.WriteTimeout,
		ReadLimit:         int64(config.ReadLimit),
		AllowedOrigins:    []string{config.ClientURL},
	})
	server := rest.NewServer(log, authService, chatService, tokens, wsHandler, rest.Options{
		ClientURL:     config.ClientURL,
		CookieName:    config.TokenCookie,
		CookieSecure:  config.CookieSecure,
		TokenDuration: config.AuthTokenDuration,
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	// The listener stops first. Hijacked WebSocket connections are not tracked
	// by Shutdown; closing them through the orchestrator ends their read loops.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", "error", err)
	}
	orchestrator.Shutdown()
	sup.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return nil
}
