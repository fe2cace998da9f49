package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os/signal"
    "syscall"

    "call_analytics/internal/app"
    "call_analytics/internal/config"
)

func main() {
    cfg := config.Load()
    application, err := app.New(cfg)
    if err != nil {
        log.Fatalf("init: %v", err)
    }
    defer application.Close()

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
    defer stop()
    if err := application.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
        log.Fatalf("run: %v", err)
    }
}
