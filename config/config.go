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

// Package config loads order-notify configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Store     StoreConfig
	Delivery  DeliveryConfig
	Bridge    BridgeConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Firestore FirestoreConfig
	JWT       JWTConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Source bool   // include file:line in records
}

type StoreConfig struct {
	Currency            string
	DefaultCustomerName string
	WebhookSecret       string // Shopify app secret; empty disables signature checks
}

type DeliveryConfig struct {
	Backoff time.Duration // wait between queued delivery attempts
}

type BridgeConfig struct {
	URL          string
	Session      string
	APIKey       string
	PollInterval time.Duration
	Timeout      time.Duration
}

type DatabaseConfig struct {
	Path             string
	ReceiptRetention time.Duration // how long webhook ids are remembered for dedupe
}

type KafkaConfig struct {
	Brokers string // comma-separated; empty disables publishing
	Topic   string
}

type FirestoreConfig struct {
	ProjectID       string // empty disables the mirror
	Database        string
	CredentialsPath string
}

type JWTConfig struct {
	SigningKey string // empty disables the admin API
	Issuer     string
}

// LoadDotEnv loads variables from path (".env" when empty) without
// overriding the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load returns application configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			Source: getEnvBool("LOG_SOURCE", false),
		},
		Store: StoreConfig{
			Currency:            getEnv("STORE_CURRENCY", "LKR"),
			DefaultCustomerName: getEnv("DEFAULT_CUSTOMER_NAME", "Valued Customer"),
			WebhookSecret:       getEnv("SHOPIFY_WEBHOOK_SECRET", ""),
		},
		Delivery: DeliveryConfig{
			Backoff: getEnvDuration("DELIVERY_BACKOFF", 5*time.Second),
		},
		Bridge: BridgeConfig{
			URL:          getEnv("BRIDGE_URL", "http://localhost:3000"),
			Session:      getEnv("BRIDGE_SESSION", "default"),
			APIKey:       getEnv("BRIDGE_API_KEY", ""),
			PollInterval: getEnvDuration("BRIDGE_POLL_INTERVAL", 10*time.Second),
			Timeout:      getEnvDuration("BRIDGE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Path:             getEnv("DB_PATH", "order-notify.db"),
			ReceiptRetention: getEnvDuration("RECEIPT_RETENTION", 72*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: getEnv("KAFKA_BROKERS", ""),
			Topic:   getEnv("KAFKA_TOPIC", "order-notify-outcomes"),
		},
		Firestore: FirestoreConfig{
			ProjectID:       getEnv("FIRESTORE_PROJECT_ID", ""),
			Database:        getEnv("FIRESTORE_DATABASE", "(default)"),
			CredentialsPath: getEnv("GOOGLE_CREDENTIALS_PATH", ""),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("ADMIN_JWT_KEY", ""),
			Issuer:     getEnv("ADMIN_JWT_ISSUER", "order-notify"),
		},
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Bridge.URL) == "" {
		errs = append(errs, errors.New("BRIDGE_URL is required"))
	}
	if c.Delivery.Backoff <= 0 {
		errs = append(errs, errors.New("DELIVERY_BACKOFF must be positive"))
	}
	if c.Bridge.PollInterval <= 0 {
		errs = append(errs, errors.New("BRIDGE_POLL_INTERVAL must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}
	if c.Server.Env == "production" && c.Store.WebhookSecret == "" {
		errs = append(errs, errors.New("SHOPIFY_WEBHOOK_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s", "1m30s") or bare seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
