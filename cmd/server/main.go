package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"talkify/auth"
	"talkify/bus"
	"talkify/domain"
	"talkify/internal"
	"talkify/queue"
	"talkify/repositories"
	"talkify/runtime"
	"talkify/runtime/workers"
	"talkify/server"
	"talkify/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern ensures all 'defer' statements (database cleanup, queue disconnect) are executed
// before the process exits, and keeps the initialization logic testable.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := internal.LoggerFromLevel(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Durable message store (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	messageRepository := repositories.NewMessageRepository(db, logger)
	roomRepository := repositories.NewRoomRepository(db, logger)

	// 3. Broadcast bus (Redis pub/sub)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
	})
	broadcastBus := bus.NewRedisBus(redisClient, config.BusChannel, logger)
	defer func() {
		logger.Info("Closing Redis...")
		_ = broadcastBus.Close()
	}()

	// 4. Durable write queue (NATS JetStream)
	writeQueue := queue.NewJetStreamQueue(logger)
	if err := writeQueue.Connect(ctx, queue.Config{
		URL:        config.NatsURL,
		AckWait:    config.QueueAckWait,
		MaxDeliver: config.QueueMaxDeliver,
	}); err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing NATS...")
		_ = writeQueue.Close()
	}()

	// 5. Core
	registry := runtime.NewRegistry()
	dedup, err := runtime.NewDedupCache(config.DedupMaxEntries, config.DedupTTL)
	if err != nil {
		return exitRuntime, err
	}
	defer dedup.Close()

	system := domain.SystemIdentity{ID: config.SystemUserID, Name: config.SystemName, Email: config.SystemEmail}
	dispatcher := runtime.NewDispatcher(logger, broadcastBus, writeQueue, registry, messageRepository, dedup,
		config.SinkTimeout, config.EnqueueRetryWait, config.EnqueueRetryMax, config.MaxContentLength)
	history := runtime.NewHistoryService(logger, messageRepository, config.HistoryLimit, config.HistoryLimitMax)
	sessions := runtime.NewSessionManager(logger, registry, roomRepository, history, dispatcher, system)
	chatService := services.NewChatService(sessions, dispatcher, history)

	// 6. Supervised background workers: the bus listener delivers to
	// local members and centralizes persistence; the store writer
	// drains the queue into Badger.
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(
		workers.NewBusListener(logger, broadcastBus, writeQueue, registry, dedup, config.SinkTimeout),
		workers.NewStoreWriter(logger, writeQueue, messageRepository, config.WriteBackoff),
	)
	go supervisor.Run(ctx)

	// 7. Transport
	wsServer := server.NewServer(logger, auth.NewResolver([]byte(config.JWTSecret)), registry, chatService, server.Options{
		PongWait:   config.PongWait,
		WriteWait:  config.WriteWait,
		ReadLimit:  config.ReadLimit,
		SendBuffer: config.SendBuffer,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return exitRuntime, err
	case <-ctx.Done():
	}

	// 8. Graceful shutdown: stop accepting, stop workers, flush.
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownWait)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	supervisor.Stop()

	return exitOK, nil
}
