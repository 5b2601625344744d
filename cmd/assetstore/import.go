// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/assetstore/lib/cli"
	"github.com/bureau-foundation/assetstore/lib/library"
)

// manifest lists the files of a package to import. It is JSON with
// comments:
//
//	{
//	  // Relative to the manifest's directory.
//	  "root": "media",
//	  "files": [
//	    {"path": "img/cover.png"},
//	    {"path": "captions.vtt", "mime": "text/vtt"},
//	  ],
//	}
type manifest struct {
	Root  string          `json:"root"`
	Files []manifestEntry `json:"files"`
}

type manifestEntry struct {
	Path string `json:"path"`
	Mime string `json:"mime,omitempty"`
}

// readManifest parses the manifest at path and reads every file it
// names. Paths must stay inside the root.
func readManifest(path string) ([]library.ImportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &parsed); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(parsed.Files) == 0 {
		return nil, fmt.Errorf("%s lists no files", path)
	}

	root := filepath.Dir(path)
	if parsed.Root != "" {
		if filepath.IsAbs(parsed.Root) {
			root = parsed.Root
		} else {
			root = filepath.Join(root, parsed.Root)
		}
	}

	files := make([]library.ImportFile, 0, len(parsed.Files))
	for _, entry := range parsed.Files {
		local := filepath.FromSlash(entry.Path)
		if !filepath.IsLocal(local) {
			return nil, fmt.Errorf("%s: path %q escapes the package root", path, entry.Path)
		}
		payload, err := os.ReadFile(filepath.Join(root, local))
		if err != nil {
			return nil, err
		}
		files = append(files, library.ImportFile{
			Path:    filepath.ToSlash(filepath.Clean(local)),
			Payload: payload,
			Mime:    entry.Mime,
		})
	}
	return files, nil
}

func (a *app) importCommand() *cli.Command {
	var params commonParams
	return &cli.Command{
		Name:    "import",
		Summary: "Import the files listed in a package manifest",
		Description: `Store every file named by a JSONC manifest and print a JSON object
mapping each package path to its asset id. Files with identical
content map to the same id.`,
		Usage: "assetstore import <manifest.jsonc> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("import", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("import: exactly one manifest is required")
			}
			files, err := readManifest(args[0])
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}

			s, err := a.open(ctx, &params, "import")
			if err != nil {
				return err
			}
			defer s.Close()

			ids, err := s.library.Import(ctx, files)
			if err != nil {
				return err
			}
			return cli.WriteJSON(a.stdout, ids)
		},
	}
}
