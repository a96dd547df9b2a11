// SPDX-License-Identifier: MPL-2.0

package server

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultAddress is the listen address used when none is configured.
	DefaultAddress = "127.0.0.1:8080"
	// DefaultMount is the path the bundle endpoint is served on.
	DefaultMount = "/modules"
	// HealthPath is the liveness endpoint.
	HealthPath = "/health"

	defaultShutdownTimeout = 10 * time.Second
	defaultStartupTimeout  = 5 * time.Second
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid server config")

type (
	// Config holds immutable configuration for the bundle server.
	Config struct {
		// Address is the host:port to bind (port 0 picks a free port).
		Address string
		// Mount is the path of the bundle endpoint.
		Mount string
		// ShutdownTimeout bounds graceful shutdown.
		ShutdownTimeout time.Duration
		// StartupTimeout bounds the wait for the listener to be ready.
		StartupTimeout time.Duration
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Address:         DefaultAddress,
		Mount:           DefaultMount,
		ShutdownTimeout: defaultShutdownTimeout,
		StartupTimeout:  defaultStartupTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.Mount == "" {
		c.Mount = d.Mount
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = d.StartupTimeout
	}
	return c
}

// Validate checks the mount path. The address is checked when listening.
func (c Config) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.Mount, "/") {
		errs = append(errs, fmt.Errorf("mount %q must start with /", c.Mount))
	}
	if c.Mount == HealthPath {
		errs = append(errs, fmt.Errorf("mount %q collides with the health endpoint", c.Mount))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid server config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
