package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/infrastructure/logging"
	"garagelink.app/client/internal/mockbackend"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	ttl := flag.Duration("access-ttl", 2*time.Minute, "access token lifetime")
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: "info", Pretty: true, App: "mockbackend"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	backend := mockbackend.New(mockbackend.Options{AccessTTL: *ttl, Logger: logger})
	backend.AddUser(domain.User{ID: "u-1", Name: "Dana Driver", Email: "driver@example.com", Role: domain.RoleDriver}, "driver")
	backend.AddUser(domain.User{ID: "m-1", Name: "Sam Mechanic", Email: "mechanic@example.com", Role: domain.RoleMechanic}, "mechanic")

	srv := &http.Server{
		Addr:              *addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("mock backend listening", zap.String("addr", *addr), zap.Duration("access_ttl", *ttl))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down mock backend")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
