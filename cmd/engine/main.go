package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/otterable/minifitna/internal/api"
	"github.com/otterable/minifitna/internal/config"
	"github.com/otterable/minifitna/internal/engine"
	"github.com/otterable/minifitna/internal/events"
	"github.com/otterable/minifitna/internal/heartbeat"
	"github.com/otterable/minifitna/internal/reminder"
	"github.com/otterable/minifitna/internal/store"
	"github.com/otterable/minifitna/internal/ws"
)

// reloadInterval is how often the engine re-pulls weights from the
// backend to pick up entries written by other devices.
const reloadInterval = 5 * time.Minute

func main() {
	log.SetFlags(log.Ldate | log.Ltime)
	cfg := config.LoadEngine()

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("[Engine] Failed to open local store %s: %v", cfg.StorePath, err)
	}
	defer st.Close()

	client := api.NewClient(cfg.BaseURL)
	bus := events.NewBus()
	hub := ws.NewHub(bus)

	var notifier *reminder.CronNotifier
	if cfg.ShoutrrrURL != "" {
		notifier = reminder.NewCronNotifier(reminder.ShoutrrrSender{URL: cfg.ShoutrrrURL}, bus)
		log.Println("[Engine] Reminder delivery enabled")
	} else {
		log.Println("[Engine] SHOUTRRR_URL not set, reminders disabled")
	}

	sched := reminder.NewScheduler(nil, bus, time.Now)
	if notifier != nil {
		sched = reminder.NewScheduler(notifier, bus, time.Now)
	}

	eng := engine.New(client, st, sched, bus, time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Restore(ctx); err != nil {
		if errors.Is(err, engine.ErrNoSession) && cfg.Username != "" {
			if err := eng.Login(ctx, cfg.Username, cfg.Password); err != nil {
				log.Printf("[Engine] Login failed: %v", err)
			} else {
				log.Printf("[Engine] Logged in as %s", cfg.Username)
			}
		} else {
			log.Printf("[Engine] No session restored: %v", err)
		}
	} else {
		log.Println("[Engine] Session restored from local store")
	}

	if err := eng.LoadWeights(ctx, "", ""); err != nil {
		log.Printf("[Engine] Initial weight load failed: %v", err)
	}

	monitor := heartbeat.NewMonitor(client, bus, heartbeat.DefaultInterval)
	monitor.Start()
	log.Printf("[Engine] Heartbeat probing %s", cfg.BaseURL)

	go func() {
		ticker := time.NewTicker(reloadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := eng.LoadWeights(ctx, "", ""); err != nil {
					log.Printf("[Engine] Weight reload failed: %v", err)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: statusMux(eng, monitor, sched, hub),
	}
	go func() {
		log.Printf("[Engine] Status endpoint on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Engine] Listen failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[Engine] Shutting down...")
	cancel()
	monitor.Stop()
	if notifier != nil {
		notifier.Stop()
	}
	hub.CloseAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Engine] Shutdown error: %v", err)
	}
}

// statusMux exposes the live WebSocket stream plus a one-shot JSON
// snapshot of engine state for debugging.
func statusMux(eng *engine.Engine, monitor *heartbeat.Monitor, sched *reminder.Scheduler, hub *ws.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleConnection)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		snapshot := map[string]any{
			"api_up":      monitor.Up(),
			"weekly_rate": eng.WeeklyRate(),
			"verdict":     eng.Verdict().String(),
			"clients":     hub.ActiveConnections(),
		}
		if at, ok := sched.NextFire(reminder.WeighIn); ok {
			snapshot["next_weigh_reminder"] = at.Format(time.RFC3339)
		}
		if at, ok := sched.NextFire(reminder.Run); ok {
			snapshot["next_run_reminder"] = at.Format(time.RFC3339)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
	})
	return mux
}
