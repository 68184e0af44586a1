// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for the parley client and the
// parley-relay server.
//
// Configuration comes from a single file named by the PARLEY_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no discovery and no search path: with neither
// set, [Load] returns [Default]. The file format follows the
// extension: .yaml/.yml, .toml, or .json/.jsonc (comments and trailing
// commas allowed). Unknown keys are errors in every format.
//
// A production section overrides base values when [Config].Environment
// is production. Without one, production still switches logging to
// JSON at info level.
//
// After loading, ${VAR} and ${VAR:-default} are expanded in URLs,
// the listen address, and the log file path. No other environment
// variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Transports, Session, Relay, Logging
//   - [Duration] -- a time.Duration written as "5s" in every format
//   - [Default] -- development defaults pointing at a local relay
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other Parley packages.
package config
