package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"eastask-go/internal/app"
	"eastask-go/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.NewFromEnv()
	log.Info("eastask: starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(log)
	if err != nil {
		log.Critical("eastask: init failed", "err", err)
		return 1
	}

	srv := application.HTTPServer()
	log.Info("http: listening", "addr", srv.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("eastask: shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			log.Critical("http: server failed", "addr", srv.Addr, "err", err)
			exitCode = 1
		}
	}
	// a second signal during shutdown kills the process
	stop()

	if err := application.Shutdown(context.Background()); err != nil {
		log.Error("eastask: graceful shutdown failed", "err", err)
		exitCode = 1
	}
	if err := application.Close(); err != nil {
		log.Error("eastask: close failed", "err", err)
		exitCode = 1
	}

	if exitCode == 0 {
		log.Info("eastask: stopped")
	}
	return exitCode
}
