// Package config loads runtime configuration for the Voicely CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the Voicely backend
//	-t int      request timeout (seconds)
//	-i int      online status check interval (seconds)
//	-d string   path to the local database file
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "https://api.voicely.app",
//	  "request_timeout": "15s",
//	  "online_check_interval": "3s",
//	  "database_path": "voicely.db"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
