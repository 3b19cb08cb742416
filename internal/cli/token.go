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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jredh-dev/order-notify/config"
	"github.com/jredh-dev/order-notify/internal/token"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Operator    string
	Roles       []string
	TTL         time.Duration
	GenerateKey bool
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API token",
		Long: `Mint a bearer token for the admin API, signed with ADMIN_JWT_KEY.

Example:
  order-notify token --operator alice --ttl 8h
  order-notify token --generate-key`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Operator, "operator", "admin", "operator name recorded in the token")
	cmd.Flags().StringSliceVar(&opts.Roles, "role", []string{token.RoleAdmin}, "roles granted by the token")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&opts.GenerateKey, "generate-key", false, "print a new random signing key instead of a token")

	return cmd
}

func runToken(opts *TokenOptions, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	if opts.GenerateKey {
		key, err := token.GenerateSigningKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, key)
		return nil
	}

	cfg := config.Load()
	if cfg.JWT.SigningKey == "" {
		return fmt.Errorf("ADMIN_JWT_KEY is not set")
	}
	if opts.TTL <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	tok, err := token.New(cfg.JWT.SigningKey, cfg.JWT.Issuer).GenerateToken(opts.Operator, opts.Roles, opts.TTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(out, tok)
	return nil
}
