// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"
)

// maxConfigFileSize bounds config files read from disk.
const maxConfigFileSize = 1 << 20

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. The special table is returned
// separately: Viper lowercases keys and splits them on dots, and special
// identifiers must survive both unchanged.
func loadCUEIntoViper(v *viper.Viper, path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return nil, fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return nil, formatCUEError(userValue.Err(), path)
	}

	// Unify with schema to validate against #Config definition
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return nil, formatCUEError(err, path)
	}

	var special map[string]string
	if sv := unified.LookupPath(cue.ParsePath("special")); sv.Exists() {
		if err := sv.Decode(&special); err != nil {
			return nil, formatCUEError(err, path)
		}
	}
	delete(configMap, "special")

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	return special, nil
}

// formatCUEError prefixes each CUE error with the file and the dotted path of
// the offending field, e.g. "config.cue: server.mount: invalid value".
func formatCUEError(err error, filePath string) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		p := fieldPath(cueerrors.Path(e))
		msg := e.Error()
		if p != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, p), ":"))
			msg = p + ": " + msg
		}
		lines = append(lines, msg)
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

// fieldPath renders ["scan", "extensions", "0"] as "scan.extensions[0]".
func fieldPath(parts []string) string {
	var sb strings.Builder
	for i, part := range parts {
		if i > 0 && isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
