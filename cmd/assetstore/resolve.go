// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assetstore/lib/cli"
)

type resolveParams struct {
	commonParams
	File       string `flag:"file,f" desc:"read text from this file (default: stdin)"`
	Sync       bool   `flag:"sync" desc:"use cached handles only and never touch the store"`
	Unresolve  bool   `flag:"unresolve" desc:"turn handles and placeholders back into reference tokens"`
	Wait       bool   `flag:"wait" desc:"wait for fetches of missing assets, then resolve again"`
	References bool   `flag:"references" desc:"print the referenced asset ids instead of rewriting"`
}

func (a *app) resolveCommand() *cli.Command {
	var params resolveParams
	return &cli.Command{
		Name:    "resolve",
		Summary: "Rewrite asset references in text",
		Description: `Replace every asset:// reference in the input with a displayable URL.

Stored assets become handle URLs. Missing assets become placeholder
images, and when a remote is configured a fetch is scheduled for each.
With --wait the command waits for those fetches and resolves again.`,
		Usage: "assetstore resolve [flags] < lesson.html",
		Examples: []cli.Example{
			{Description: "List the assets a document references", Command: "assetstore resolve --references -f lesson.md"},
			{Description: "Restore tokens in edited output", Command: "assetstore resolve --unresolve -f edited.html"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("resolve", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("resolve: unexpected argument %q (use --file)", args[0])
			}
			if params.Unresolve && (params.Sync || params.Wait) {
				return fmt.Errorf("resolve: --unresolve cannot be combined with --sync or --wait")
			}
			input, err := a.readInput(params.File)
			if err != nil {
				return fmt.Errorf("resolve: %w", err)
			}
			text := string(input)

			s, err := a.open(ctx, &params.commonParams, "resolve")
			if err != nil {
				return err
			}
			defer s.Close()

			var output string
			switch {
			case params.References:
				for _, id := range s.library.ExtractReferences(text) {
					fmt.Fprintln(a.stdout, id)
				}
				return nil
			case params.Unresolve:
				output = s.library.UnresolveText(text)
			case params.Sync:
				output = s.library.ResolveTextSync(text)
			default:
				output = s.library.ResolveText(ctx, text)
				if params.Wait {
					s.library.Reconciler().Wait()
					output = s.library.ResolveText(ctx, text)
				}
			}
			_, err = io.WriteString(a.stdout, output)
			return err
		},
	}
}
