package main

import (
	"context"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamehub/auth"
	"gamehub/config"
	httpserver "gamehub/http"
	"gamehub/match"
	"gamehub/store"
	"gamehub/ws"
)

func main() {
	log.Println("Starting gamehub server...")

	cfg := config.Load()
	log.Printf("Configuration loaded - Server port: %s, DB path: %s", cfg.ServerPort, cfg.DBPath)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	log.Println("Database initialized successfully")

	sessionManager := auth.NewSessionManager(cfg.SessionTTL)
	authService := auth.NewService(db, sessionManager)
	hub := ws.NewHub()
	agents := match.NewAgentClient(cfg.AgentTimeout)
	orchestrator := match.NewOrchestrator(db, agents, hub, cfg.LeaseTTL)
	queue := match.NewQueue(cfg.QueueSize)
	pool := match.NewWorkerPool(queue, orchestrator, cfg.Workers)
	sweeper := match.NewSweeper(db, queue, cfg.LeaseTTL, cfg.SweepInterval)

	server := httpserver.NewServer(cfg, authService, orchestrator, queue, hub, db)
	srv := server.GetHTTPServer(cfg.ServerPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(ctx)
	}()
	log.Printf("Agent worker pool running with %d workers", cfg.Workers)

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(ctx)
	}()

	go func() {
		log.Printf("Server listening on http://localhost%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	<-poolDone
	<-sweeperDone

	log.Println("Server stopped")
}
