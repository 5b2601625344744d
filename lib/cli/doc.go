// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the assetstore
// command.
//
// The central type is [Command]: a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function receiving the command's context. [Command.Execute] parses
// flags, routes subcommands, and prints structured help. Unknown
// subcommands and flags get a "did you mean" suggestion when one is
// within edit distance 3.
//
// Flag sets are usually generated from tagged parameter structs with
// [FlagsFromParams]. Commands that support machine-readable output
// embed [JSONOutput].
package cli
