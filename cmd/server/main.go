package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/otterable/minifitna/internal/config"
	"github.com/otterable/minifitna/internal/server"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime)
	cfg := config.LoadServer()

	db, err := server.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("[Server] Failed to open database %s: %v", cfg.DBPath, err)
	}
	defer db.Close()
	log.Printf("[Server] Database ready (%s)", cfg.DBPath)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.NewRouter(db),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("[Server] Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] Listen failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[Server] Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}
}
