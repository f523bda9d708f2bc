package main

import (
	"context"
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

	"portal-chat/auth"
	"portal-chat/moderation"
	"portal-chat/repositories"
	"portal-chat/runtime"
	"portal-chat/runtime/workers"
	"portal-chat/services"
	"portal-chat/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer executes before the process
// exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
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

	// 3. Core components
	store, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return fmt.Errorf("message repository: %w", err)
	}

	words, err := moderation.LoadWords()
	if err != nil {
		return fmt.Errorf("load censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(words.Words, config.CharacterRune())
	if err != nil {
		return fmt.Errorf("build moderator: %w", err)
	}
	log.Info("moderation ready", "languages", words.Languages)

	registry := runtime.NewRegistry(log)
	dispatcher := runtime.NewDispatcher(log, store, registry, &moderator, config.IngestQueueSize)
	chatService := services.NewChatService(log, store, dispatcher, config.SplitIdentities())

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervision
	sup := workers.NewSupervisor(log)
	sup.Add(
		dispatcher,
		workers.NewHealthMonitoringWorker(log, registry.Count, config.HealthInterval),
	)
	go sup.Run(ctx)

	// 6. HTTP Server
	authenticator := auth.NewAuthenticator(config.AuthSecret)
	chatHandler := transport.NewChatHandler(log, chatService, authenticator, config.ConnectionBufferSize)
	router := transport.NewRouter(log, chatService, authenticator, chatHandler)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown error", "err", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
