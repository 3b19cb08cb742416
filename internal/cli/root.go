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

// Package cli implements the order-notify command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jredh-dev/order-notify/config"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "order-notify",
		Short: "WhatsApp order confirmations for e-commerce webhooks",
		Long: `order-notify receives order-created webhooks from a store and sends the
customer a WhatsApp confirmation through a WhatsApp bridge session.

Orders that arrive while the session is not ready are queued in memory and
delivered in order once it is.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(opts.EnvFile)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand prints the build version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "order-notify "+Version)
		},
	}
}
