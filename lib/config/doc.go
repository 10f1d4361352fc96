// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the foredeck
// client.
//
// Configuration is resolved from a single file: the FOREDECK_CONFIG
// environment variable if set (via [Load]), an explicit path such as a
// --config flag (via [LoadFile]), or $XDG_CONFIG_HOME/foredeck/config.yaml
// otherwise. A missing file is not an error — every field carries a
// usable default, so a fresh install runs with no configuration at all.
//
// The file supports named profile sections that override base values
// when [Config].Profile (or FOREDECK_PROFILE) selects them, so one file
// can describe several workspaces:
//
//	server:
//	  base_url: https://api.foredeck.sh
//	profiles:
//	  staging:
//	    server:
//	      base_url: https://staging.foredeck.sh
//
// Load order is: defaults, file, profile overrides, FOREDECK_* value
// overrides, then ${VAR:-default} expansion on path fields. Validation
// is separate ([Config.Validate]) and reports all problems at once.
//
// Key exports:
//
//   - [Config] -- master struct with Server, Paths, Watch, Log
//   - [Default] -- returns a Config with client defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other Foredeck packages.
package config
