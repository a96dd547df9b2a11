// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// LogLevelDebug logs every traversal warning.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs lifecycle events.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs interrupted streams and worse.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs read failures only.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// LogLevel is the server log threshold.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sections.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Root is the directory bundles are served from.
		Root string `json:"root" mapstructure:"root"`
		// ModulesDir is the directory name searched for bare identifiers.
		ModulesDir string `json:"modules_dir" mapstructure:"modules_dir"`
		// Special maps special identifiers to host file paths.
		Special map[string]string `json:"special,omitempty" mapstructure:"special"`
		// Scan configures require extraction.
		Scan ScanConfig `json:"scan" mapstructure:"scan"`
		// Server configures the HTTP endpoint.
		Server ServerConfig `json:"server" mapstructure:"server"`
		// Cache configures record invalidation.
		Cache CacheConfig `json:"cache" mapstructure:"cache"`
		// Log configures server logging.
		Log LogConfig `json:"log" mapstructure:"log"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// ScanConfig configures which files are scanned for require calls.
	ScanConfig struct {
		// Extensions lists scanned file extensions, each with a leading dot.
		Extensions []string `json:"extensions" mapstructure:"extensions"`
	}

	// ServerConfig configures the HTTP server.
	ServerConfig struct {
		Address               string        `json:"address" mapstructure:"address"`
		Mount                 string        `json:"mount" mapstructure:"mount"`
		ShutdownTimeout       time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
		MaxResolveConcurrency int           `json:"max_resolve_concurrency" mapstructure:"max_resolve_concurrency"`
	}

	// CacheConfig controls invalidation of cached records. Records live for
	// the life of the process unless Watch is set.
	CacheConfig struct {
		Watch    bool          `json:"watch" mapstructure:"watch"`
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
		// Patterns restricts watched files (doublestar globs relative to Root).
		Patterns []string `json:"patterns" mapstructure:"patterns"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme ("auto", "dark", "light")
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Root:       ".",
		ModulesDir: "node_modules",
		Scan: ScanConfig{
			Extensions: []string{".js"},
		},
		Server: ServerConfig{
			Address:               "127.0.0.1:8080",
			Mount:                 "/modules",
			ShutdownTimeout:       10 * time.Second,
			MaxResolveConcurrency: 8,
		},
		Cache: CacheConfig{
			Debounce: 300 * time.Millisecond,
			Patterns: []string{"**/*"},
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// Validate returns an *InvalidConfigError listing every invalid field.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Root) == "" {
		errs = append(errs, errors.New("root: must not be empty"))
	}
	if c.ModulesDir == "" || strings.ContainsAny(c.ModulesDir, `/\`) {
		errs = append(errs, fmt.Errorf("modules_dir: %q must be a single directory name", c.ModulesDir))
	}
	for id, p := range c.Special {
		if id == "" {
			errs = append(errs, errors.New("special: identifier must not be empty"))
		}
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("special.%s: path must not be empty", id))
		}
	}
	for i, ext := range c.Scan.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, fmt.Errorf("scan.extensions[%d]: %q must start with a dot", i, ext))
		}
	}
	if !strings.HasPrefix(c.Server.Mount, "/") {
		errs = append(errs, fmt.Errorf("server.mount: %q must start with /", c.Server.Mount))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout: must not be negative"))
	}
	if c.Server.MaxResolveConcurrency < 0 {
		errs = append(errs, errors.New("server.max_resolve_concurrency: must not be negative"))
	}
	if c.Cache.Debounce < 0 {
		errs = append(errs, errors.New("cache.debounce: must not be negative"))
	}
	if ok, fieldErrs := c.Log.Level.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.UI.ColorScheme.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so errors.Is
// matches both the sentinel and the per-field sentinels.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme so callers can use errors.Is for programmatic detection.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel so callers can use errors.Is for programmatic detection.
func (e *InvalidLogLevelError) Unwrap() error {
	return ErrInvalidLogLevel
}
