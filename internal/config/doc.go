// SPDX-License-Identifier: MPL-2.0

// Package config loads modulebox configuration using Viper with CUE as the
// file format.
//
// The file is looked up at the path given by --config, then
// $XDG_CONFIG_HOME/modulebox/config.cue, then ./config.cue. Every file is
// validated against the embedded #Config schema (config_schema.cue) before it
// is merged over the defaults. MODULEBOX_* environment variables override
// both, with "." in a key replaced by "_" (MODULEBOX_SERVER_ADDRESS).
package config
