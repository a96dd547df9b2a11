// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type (
	// tomlConfig mirrors Config with durations rendered as strings.
	tomlConfig struct {
		Root       string            `toml:"root"`
		ModulesDir string            `toml:"modules_dir"`
		Special    map[string]string `toml:"special,omitempty"`
		Scan       struct {
			Extensions []string `toml:"extensions"`
		} `toml:"scan"`
		Server struct {
			Address               string `toml:"address"`
			Mount                 string `toml:"mount"`
			ShutdownTimeout       string `toml:"shutdown_timeout"`
			MaxResolveConcurrency int    `toml:"max_resolve_concurrency"`
		} `toml:"server"`
		Cache struct {
			Watch    bool     `toml:"watch"`
			Debounce string   `toml:"debounce"`
			Patterns []string `toml:"patterns"`
		} `toml:"cache"`
		Log struct {
			Level string `toml:"level"`
		} `toml:"log"`
		UI struct {
			ColorScheme string `toml:"color_scheme"`
			Verbose     bool   `toml:"verbose"`
		} `toml:"ui"`
	}
)

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modulebox configuration file\n")
	sb.WriteString("// Every field is optional; omitted fields keep their defaults.\n\n")

	fmt.Fprintf(&sb, "root:        %q\n", cfg.Root)
	fmt.Fprintf(&sb, "modules_dir: %q\n", cfg.ModulesDir)

	if len(cfg.Special) > 0 {
		sb.WriteString("\nspecial: {\n")
		for _, id := range slices.Sorted(maps.Keys(cfg.Special)) {
			fmt.Fprintf(&sb, "\t%q: %q\n", id, cfg.Special[id])
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nscan: {\n")
	fmt.Fprintf(&sb, "\textensions: %s\n", cueList(cfg.Scan.Extensions))
	sb.WriteString("}\n")

	sb.WriteString("\nserver: {\n")
	fmt.Fprintf(&sb, "\taddress:                 %q\n", cfg.Server.Address)
	fmt.Fprintf(&sb, "\tmount:                   %q\n", cfg.Server.Mount)
	fmt.Fprintf(&sb, "\tshutdown_timeout:        %q\n", cfg.Server.ShutdownTimeout.String())
	fmt.Fprintf(&sb, "\tmax_resolve_concurrency: %d\n", cfg.Server.MaxResolveConcurrency)
	sb.WriteString("}\n")

	sb.WriteString("\ncache: {\n")
	fmt.Fprintf(&sb, "\twatch:    %v\n", cfg.Cache.Watch)
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Cache.Debounce.String())
	fmt.Fprintf(&sb, "\tpatterns: %s\n", cueList(cfg.Cache.Patterns))
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// MarshalTOML renders the configuration as TOML.
func MarshalTOML(cfg *Config) ([]byte, error) {
	var out tomlConfig
	out.Root = cfg.Root
	out.ModulesDir = cfg.ModulesDir
	out.Special = cfg.Special
	out.Scan.Extensions = cfg.Scan.Extensions
	out.Server.Address = cfg.Server.Address
	out.Server.Mount = cfg.Server.Mount
	out.Server.ShutdownTimeout = cfg.Server.ShutdownTimeout.String()
	out.Server.MaxResolveConcurrency = cfg.Server.MaxResolveConcurrency
	out.Cache.Watch = cfg.Cache.Watch
	out.Cache.Debounce = cfg.Cache.Debounce.String()
	out.Cache.Patterns = cfg.Cache.Patterns
	out.Log.Level = cfg.Log.Level.String()
	out.UI.ColorScheme = cfg.UI.ColorScheme.String()
	out.UI.Verbose = cfg.UI.Verbose

	data, err := toml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config as TOML: %w", err)
	}
	return data, nil
}
