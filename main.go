package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/flowcall/internal/config"
	"github.com/pathakanu/flowcall/internal/database"
	"github.com/pathakanu/flowcall/internal/reminder"
	"github.com/pathakanu/flowcall/internal/scheduler"
	"github.com/pathakanu/flowcall/internal/server"
	"github.com/pathakanu/flowcall/internal/session"
	"github.com/pathakanu/flowcall/internal/store"
	"github.com/pathakanu/flowcall/internal/twilio"
)

func main() {
	logger := log.New(os.Stdout, "[flowcall] ", log.LstdFlags|log.Lshortfile)
	cfg := config.Load()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database init failed: %v", err)
	}

	users := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	reminders := store.NewReminderStore(db)
	triggers := store.NewTriggerStore(db)

	gateway := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioCallerNumber)
	sessions := session.New(users, sessionStore, cfg.SessionTTL)

	// The dispatcher and the lifecycle manager reference each other; the
	// closure is only invoked after Start, by which point mgr is set.
	var mgr *reminder.Manager
	sched := scheduler.New(triggers, func(id uint) { mgr.Execute(id) }, logger)
	mgr = reminder.New(reminders, users, sched, gateway, cfg.LocalTimezone, logger)

	if err := sched.Start(); err != nil {
		logger.Fatalf("scheduler start: %v", err)
	}
	if err := mgr.StartReconciler(cfg.ReconcileInterval); err != nil {
		logger.Fatalf("reconciler start: %v", err)
	}

	api := server.New(sessions, users, mgr, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.Handler(),
	}

	go func() {
		logger.Printf("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	waitForShutdown(srv, mgr, sched, logger)
}

func waitForShutdown(srv *http.Server, mgr *reminder.Manager, sched *scheduler.Runtime, logger *log.Logger) {
	stopCtx := make(chan os.Signal, 1)
	signal.Notify(stopCtx, syscall.SIGINT, syscall.SIGTERM)
	<-stopCtx
	logger.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
	mgr.StopReconciler()
	sched.Stop()
}
