// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Gateway server command for farmhand.
//
// RELIABILITY: Config edits are applied live through the file watcher
//
// Command: serve
// Short:   Run the farmer-chat gateway
//
// Examples:
//   farmhand serve
//   farmhand serve --listen 0.0.0.0:8787

package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/farmhand/internal/cloud"
	"github.com/jeranaias/farmhand/internal/config"
	"github.com/jeranaias/farmhand/internal/server"
	"github.com/jeranaias/farmhand/internal/util"
)

// shutdownTimeout bounds draining open streams on exit.
const shutdownTimeout = 10 * time.Second

// serverSettings maps the [server] section onto the reloadable settings.
func serverSettings(cfg *config.Config) server.Settings {
	return server.Settings{
		Listen:             cfg.Server.Listen,
		Path:               cfg.Server.Path,
		ClientKey:          cfg.Server.ClientKey,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	}
}

// newUpstream builds the provider client from the [server] section.
func newUpstream(cfg *config.Config) *cloud.UpstreamClient {
	return cloud.NewUpstreamClient(cfg.Server.UpstreamURL, cfg.Server.UpstreamKey).
		WithModel(cfg.Server.Model).
		WithSampling(cfg.Server.MaxTokens, cfg.Server.Temperature)
}

// HandleServe runs the chat gateway until interrupted. Edits to the config
// file are applied without a restart, except for the listen address.
func HandleServe(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if listen := args.Parser.Flag("listen"); listen != "" {
		cfg.Server.Listen = listen
		if err := cfg.Validate(); err != nil {
			return &UsageError{Reason: err.Error(), Example: "farmhand serve --listen 127.0.0.1:8787"}
		}
	}

	upstream := newUpstream(cfg)
	if !upstream.IsConfigured() {
		log.Printf("SERVER_WARNING | upstream key not set; chat requests will fail until server.upstream_key or LOVABLE_API_KEY is set")
	}
	srv := server.New(serverSettings(cfg), upstream)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchPath := args.ConfigPath
	if watchPath == "" {
		watchPath, _ = config.ActivePath()
	} else {
		watchPath = util.ExpandHome(watchPath)
	}
	listen := cfg.Server.Listen
	if watchPath != "" {
		go func() {
			err := config.Watch(ctx, watchPath, config.DefaultWatchDebounce, func(next *config.Config, err error) {
				if err != nil {
					return
				}
				// The listener stays where it was bound.
				next.Server.Listen = listen
				srv.Reload(serverSettings(next), newUpstream(next))
			})
			if err != nil {
				log.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", watchPath, err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "farmhand gateway listening on http://%s%s\n", listen, cfg.Server.Path)
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return &CommandError{Command: "serve", Action: "listen", Reason: "server stopped", Err: err}
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
