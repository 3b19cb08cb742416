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

// order-notify sends WhatsApp order confirmations for store webhooks.
//
// Configuration is done via environment variables (optionally from a .env
// file) so the binary runs identically in Docker, on bare metal, or in CI:
//
//	BRIDGE_URL              WhatsApp bridge base URL, e.g. "http://waha:3000"
//	BRIDGE_SESSION          bridge session name (default "default")
//	SHOPIFY_WEBHOOK_SECRET  app secret used to verify webhook signatures
//	DB_PATH                 SQLite delivery ledger (default "order-notify.db")
//	KAFKA_BROKERS           optional; publishes delivery outcomes
//	ADMIN_JWT_KEY           optional; enables the /admin API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jredh-dev/order-notify/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "order-notify: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
