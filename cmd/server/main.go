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

	"github.com/spf13/pflag"

	"keyword-crawler/internal/app"
	"keyword-crawler/internal/config"
	"keyword-crawler/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("keyword-crawler-server", pflag.ContinueOnError)
	cfgFile := flags.String("config", "", "config file (default ./config.yaml or ./config/config.yaml)")
	flags.String("addr", config.DefaultServerAddress, "listen address")
	flags.String("backend", config.BackendFirecrawl, "extraction backend: firecrawl or direct")
	flags.String("endpoint", config.DefaultEndpoint, "firecrawl service endpoint")
	flags.Duration("timeout", config.DefaultTimeout, "per-request timeout")
	flags.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgFile, flags)
	if err != nil {
		return err
	}
	if err := cfg.ValidateService(); err != nil {
		return err
	}

	l, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	client, err := app.NewClient(cfg, l)
	if err != nil {
		return err
	}

	s := &searchServer{cfg: cfg, client: client, log: l}
	srv := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     logRequest(l, s.routes()),
		ReadTimeout: 10 * time.Second,
		// A search runs until the keyword is found or the site is exhausted.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		l.Info("server listening", logger.String("addr", cfg.Server.Address))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.Error("server error", logger.Err(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	l.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	l.Info("bye")
	return nil
}

func logRequest(l *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		l.Info("request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Duration("elapsed", time.Since(start)),
		)
	})
}
