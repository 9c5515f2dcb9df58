package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nifastore/nifa/internal/config"
	"github.com/nifastore/nifa/internal/database"
	"github.com/nifastore/nifa/internal/format"
	"github.com/nifastore/nifa/internal/logging"
	"github.com/nifastore/nifa/internal/push"
	"github.com/nifastore/nifa/internal/server"
	"github.com/nifastore/nifa/internal/sms"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		os.Exit(printVAPIDKeys())
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	smsClient := sms.NewClient(cfg.SMSAPIURL, cfg.SMSAPIToken, cfg.SMSSender)
	if !smsClient.Configured() {
		logger.Warn("sms gateway not configured, verification codes cannot be sent")
	}
	if cfg.CookieSecret == "" {
		logger.Warn("NIFA_COOKIE_SECRET not set, using a per-process key; verifications end on restart")
	}

	srv := server.New(db, cfg, smsClient, logger)

	if len(os.Args) > 1 && os.Args[1] == "restore" {
		os.Exit(runRestore(srv, os.Args[2:], logger))
	}

	for _, phone := range cfg.AdminPhoneList() {
		if err := srv.AdminStore().Add(format.Digits(phone)); err != nil {
			logger.Error("failed to seed admin", "phone", phone, "error", err)
			os.Exit(1)
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	srv.BackupManager().Start(context.Background())
	defer srv.BackupManager().Stop()

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.CodeStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired codes", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired codes", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("nifa starting", "addr", ":"+cfg.Port, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cleanupCancel()
	srv.BackupManager().Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// runRestore handles "nifa restore <backup-id> <dest-path>". The restored
// database is written next to, never over, the live one.
func runRestore(srv *server.Server, args []string, logger *slog.Logger) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: nifa restore <backup-id> <dest-path>")
		return 2
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid backup id %q\n", args[0])
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := srv.BackupManager().Restore(ctx, id, args[1]); err != nil {
		logger.Error("restore failed", "id", id, "error", err)
		return 1
	}
	logger.Info("backup restored", "id", id, "path", args[1])
	return 0
}

// printVAPIDKeys prints a fresh key pair in env-file form.
func printVAPIDKeys() int {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("NIFA_VAPID_PUBLIC_KEY=%s\nNIFA_VAPID_PRIVATE_KEY=%s\n", pub, priv)
	return 0
}
