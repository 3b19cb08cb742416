// order-notify - Order confirmation notifications over WhatsApp
// Copyright (C) 2026  nexus contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jredh-dev/order-notify/config"
	"github.com/jredh-dev/order-notify/internal/delivery"
	"github.com/jredh-dev/order-notify/internal/deliverylog"
	"github.com/jredh-dev/order-notify/internal/events"
	"github.com/jredh-dev/order-notify/internal/gate"
	"github.com/jredh-dev/order-notify/internal/handlers"
	"github.com/jredh-dev/order-notify/internal/httpserver"
	"github.com/jredh-dev/order-notify/internal/messenger"
	"github.com/jredh-dev/order-notify/internal/order"
	"github.com/jredh-dev/order-notify/internal/token"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long: `Run the webhook server and the delivery queue.

All settings come from environment variables. Flags override the
matching variable.

Example:
  BRIDGE_URL=http://waha:3000 order-notify serve
  order-notify serve --port 9090 --env-file ./prod.env`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if opts.Port != "" {
				cfg.Server.Port = opts.Port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&opts.Port, "port", "", "listen port (overrides PORT)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return a.run(ctx, ":"+cfg.Server.Port)
}

// app is the assembled service.
type app struct {
	server     *httpserver.Server
	dispatcher *delivery.Dispatcher
	ledger     *deliverylog.DB
	watcher    *messenger.Watcher

	stopWatch context.CancelFunc
	watchWG   sync.WaitGroup
}

// newApp wires every component. Optional sinks (Kafka, Firestore, admin
// API) are enabled by their configuration keys.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	ledger, err := deliverylog.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}
	if n, err := ledger.PurgeReceipts(ctx, time.Now().Add(-cfg.Database.ReceiptRetention)); err != nil {
		logger.Warn("purge webhook receipts failed", "error", err)
	} else if n > 0 {
		logger.Info("purged webhook receipts", "count", n)
	}

	observers := []delivery.Observer{ledger}
	var stops []func()

	var publisher *events.Publisher
	if brokers := events.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		publisher, err = events.NewPublisher(brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			ledger.Close()
			return nil, err
		}
		observers = append(observers, publisher)
		stops = append(stops, func() {
			if err := publisher.Close(); err != nil {
				logger.Error("close kafka publisher", "error", err)
			}
		})
		logger.Info("publishing outcomes to kafka", "brokers", brokers, "topic", cfg.Kafka.Topic)
	}

	if cfg.Firestore.ProjectID != "" {
		mirror, err := deliverylog.NewFirestoreMirror(ctx, cfg.Firestore.ProjectID, cfg.Firestore.Database, cfg.Firestore.CredentialsPath, logger)
		if err != nil {
			for _, stop := range stops {
				stop()
			}
			ledger.Close()
			return nil, err
		}
		observers = append(observers, mirror)
		stops = append(stops, func() {
			if err := mirror.Close(); err != nil {
				logger.Error("close firestore mirror", "error", err)
			}
		})
		logger.Info("mirroring attempts to firestore", "project", cfg.Firestore.ProjectID)
	}

	bridge := messenger.NewBridge(cfg.Bridge.URL, cfg.Bridge.Session, cfg.Bridge.APIKey, cfg.Bridge.Timeout)
	g := gate.New(logger)
	d := delivery.New(bridge, g, delivery.Options{
		Backoff:   cfg.Delivery.Backoff,
		Logger:    logger,
		Observers: observers,
	})
	g.OnOpen(d.Trigger)

	var tokens *token.Service
	if cfg.JWT.SigningKey != "" {
		tokens = token.New(cfg.JWT.SigningKey, cfg.JWT.Issuer)
	} else {
		logger.Info("admin API disabled, ADMIN_JWT_KEY is not set")
	}
	if cfg.Store.WebhookSecret == "" {
		logger.Warn("webhook signatures are not verified, SHOPIFY_WEBHOOK_SECRET is not set")
	}

	deps := handlers.Deps{
		Dispatcher: d,
		Gate:       g,
		Receipts:   ledger,
		History:    ledger,
		Defaults: order.Defaults{
			Currency:     cfg.Store.Currency,
			CustomerName: cfg.Store.DefaultCustomerName,
		},
		Session: bridge.Session(),
		Logger:  logger,
	}
	if publisher != nil {
		deps.DeadLetters = publisher
	}
	h := handlers.New(deps)

	srv := httpserver.New(logger)
	h.Routes(srv.Router, cfg.Store.WebhookSecret, tokens)

	a := &app{
		server:     srv,
		dispatcher: d,
		ledger:     ledger,
		watcher:    messenger.NewWatcher(bridge, g, cfg.Bridge.PollInterval, logger),
		stopWatch:  func() {},
	}

	// Shutdown order: stop polling, stop delivering, then close sinks.
	srv.OnStop(a.stopWatcher)
	srv.OnStop(d.Close)
	for _, stop := range stops {
		srv.OnStop(stop)
	}
	srv.OnStop(func() {
		if err := ledger.Close(); err != nil {
			logger.Error("close ledger", "error", err)
		}
	})
	return a, nil
}

// run starts the session watcher and serves HTTP until ctx is cancelled.
func (a *app) run(ctx context.Context, addr string) error {
	a.startWatcher(ctx)
	return a.server.ListenAndServe(ctx, addr)
}

func (a *app) startWatcher(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(ctx)
	a.stopWatch = cancel
	a.watchWG.Add(1)
	go func() {
		defer a.watchWG.Done()
		a.watcher.Run(watchCtx)
	}()
}

func (a *app) stopWatcher() {
	a.stopWatch()
	a.watchWG.Wait()
}
