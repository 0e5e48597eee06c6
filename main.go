// Package main is the entry point for the Nightscout sync client
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/client"
	"github.com/mrcode/nightscout-sync/internal/models"
	"github.com/mrcode/nightscout-sync/internal/nightscout"
	"github.com/mrcode/nightscout-sync/internal/transport"
)

func main() {
	settings := models.DefaultSettings()
	if err := settings.Load(); err != nil {
		fmt.Printf("Error loading settings: %v\n", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if !settings.IsConfigured() {
		logger.Fatal("no server configured, set serverUrl in the settings file")
	}

	cfg := settings.Clone()
	rest := nightscout.NewClient(cfg.ServerURL, cfg.APISecret, cfg.APIToken, cfg.UseToken)

	if status, err := rest.GetStatus(); err != nil {
		logger.Warn("server status probe failed, continuing", zap.Error(err))
	} else {
		logger.Info("connected to server API",
			zap.String("name", status.Name),
			zap.String("version", status.Version))
	}

	dispatcher := transport.NewDispatcher(256, logger.Named("dispatch"))
	ws := transport.NewWebSocket(websocketURL(cfg.ServerURL), nil, dispatcher, logger.Named("transport"))

	c := client.New(settings, ws, dispatcher, rest, logger.Named("client"))
	c.OnTitleChange(func(title string) {
		logger.Info("title", zap.String("value", title))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil {
		logger.Fatal("client stopped", zap.Error(err))
	}
}

// websocketURL converts the configured server URL to the sync endpoint.
func websocketURL(base string) string {
	url := strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/socket"
}
