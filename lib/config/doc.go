// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the asset
// store.
//
// Configuration is loaded from a single file specified by either the
// ASSETSTORE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production without an explicit section
// pins zstd compression and disables eager fetching.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${ASSETSTORE_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// This package depends on no other asset store packages.
package config
