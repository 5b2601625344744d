// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/cli"
)

type putParams struct {
	commonParams
	cli.JSONOutput
	Name string `flag:"name" desc:"filename to record (single file only; default: the file's base name)"`
	Mime string `flag:"mime" desc:"mime type (default: inferred from name and content)"`
}

// putResult is the JSON output of put.
type putResult struct {
	Path      string   `json:"path"`
	ID        asset.ID `json:"id"`
	Reference string   `json:"reference"`
}

func (a *app) putCommand() *cli.Command {
	var params putParams
	return &cli.Command{
		Name:    "put",
		Summary: "Store files and print their references",
		Description: `Store each file in the project and print its id and reference token.

Storing bytes that are already in the project returns the existing id
and keeps the existing filename.`,
		Usage: "assetstore put <file>... [flags]",
		Examples: []cli.Example{
			{Description: "Store an image", Command: "assetstore put photo.jpg -p lesson-1"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("put", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("put: at least one file is required")
			}
			if params.Name != "" && len(args) > 1 {
				return fmt.Errorf("put: --name applies to a single file")
			}

			s, err := a.open(ctx, &params.commonParams, "put")
			if err != nil {
				return err
			}
			defer s.Close()

			results := make([]putResult, 0, len(args))
			for _, path := range args {
				payload, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("put: %w", err)
				}
				name := params.Name
				if name == "" {
					name = filepath.Base(path)
				}
				id, err := s.library.Insert(ctx, payload, name, params.Mime)
				if err != nil {
					return fmt.Errorf("put %s: %w", path, err)
				}
				record, err := s.library.Get(ctx, id)
				if err != nil {
					return fmt.Errorf("put %s: %w", path, err)
				}
				results = append(results, putResult{
					Path:      path,
					ID:        id,
					Reference: asset.FormatReference(id, record.DisplayName()),
				})
			}

			if done, err := params.EmitJSON(a.stdout, results); done {
				return err
			}
			for _, result := range results {
				fmt.Fprintf(a.stdout, "%s\t%s\n", result.ID, result.Reference)
			}
			return nil
		},
	}
}

type getParams struct {
	commonParams
	Output string `flag:"output,o" desc:"write the payload to this file (default: stdout)"`
}

func (a *app) getCommand() *cli.Command {
	var params getParams
	return &cli.Command{
		Name:    "get",
		Summary: "Write an asset's bytes",
		Usage:   "assetstore get <id|reference> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("get", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("get: exactly one asset id is required")
			}
			id, err := parseIDArg(args[0])
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}

			s, err := a.open(ctx, &params.commonParams, "get")
			if err != nil {
				return err
			}
			defer s.Close()

			record, err := s.library.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("get %s: %w", id, err)
			}
			if params.Output == "" {
				_, err = a.stdout.Write(record.Payload)
				return err
			}
			return os.WriteFile(params.Output, record.Payload, 0o644)
		},
	}
}

type listParams struct {
	commonParams
	cli.JSONOutput
	Pending bool `flag:"pending" desc:"only assets not yet uploaded"`
}

// listEntry is the JSON output of list.
type listEntry struct {
	ID           asset.ID  `json:"id"`
	Filename     string    `json:"filename,omitempty"`
	Mime         string    `json:"mime"`
	Size         int64     `json:"size"`
	Hash         string    `json:"hash"`
	OriginalPath string    `json:"original_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Uploaded     bool      `json:"uploaded"`
}

func (a *app) listCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "list",
		Summary: "List the project's assets",
		Usage:   "assetstore list [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("list", &params) },
		Run: func(ctx context.Context, args []string) error {
			s, err := a.open(ctx, &params.commonParams, "list")
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.library.List(ctx)
			if err != nil {
				return err
			}
			entries := make([]listEntry, 0, len(records))
			for _, record := range records {
				if params.Pending && record.Uploaded {
					continue
				}
				entries = append(entries, listEntry{
					ID:           record.ID,
					Filename:     record.Filename,
					Mime:         record.Mime,
					Size:         record.Size,
					Hash:         record.Hash,
					OriginalPath: record.OriginalPath,
					CreatedAt:    record.CreatedAt,
					Uploaded:     record.Uploaded,
				})
			}

			if done, err := params.EmitJSON(a.stdout, entries); done {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.stdout, "no assets")
				return nil
			}
			writer := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tNAME\tTYPE\tSIZE\tUPLOADED")
			for _, entry := range entries {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%t\n",
					entry.ID, entry.Filename, entry.Mime, asset.FormatSize(entry.Size), entry.Uploaded)
			}
			return writer.Flush()
		},
	}
}

func (a *app) rmCommand() *cli.Command {
	var params commonParams
	return &cli.Command{
		Name:        "rm",
		Summary:     "Delete assets from the project",
		Description: "Delete each asset from the local store. Removing an id that is not stored succeeds.",
		Usage:       "assetstore rm <id|reference>... [flags]",
		Flags:       func() *pflag.FlagSet { return cli.FlagsFromParams("rm", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("rm: at least one asset id is required")
			}
			ids := make([]asset.ID, 0, len(args))
			for _, arg := range args {
				id, err := parseIDArg(arg)
				if err != nil {
					return fmt.Errorf("rm: %w", err)
				}
				ids = append(ids, id)
			}

			s, err := a.open(ctx, &params, "rm")
			if err != nil {
				return err
			}
			defer s.Close()

			for _, id := range ids {
				if err := s.library.Delete(ctx, id); err != nil {
					return fmt.Errorf("rm %s: %w", id, err)
				}
			}
			return nil
		},
	}
}

func (a *app) renameCommand() *cli.Command {
	var params commonParams
	return &cli.Command{
		Name:    "rename",
		Summary: "Change an asset's filename",
		Usage:   "assetstore rename <id|reference> <name> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("rename", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("rename: expected an asset id and a new name")
			}
			id, err := parseIDArg(args[0])
			if err != nil {
				return fmt.Errorf("rename: %w", err)
			}

			s, err := a.open(ctx, &params, "rename")
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.library.Rename(ctx, id, args[1]); err != nil {
				return fmt.Errorf("rename %s: %w", id, err)
			}
			return nil
		},
	}
}

type statsParams struct {
	commonParams
	cli.JSONOutput
	All bool `flag:"all" desc:"summarize every project in the database"`
}

// projectStats is the JSON output of stats.
type projectStats struct {
	ProjectID   string `json:"project_id"`
	Count       int64  `json:"count"`
	Bytes       int64  `json:"bytes"`
	StoredBytes int64  `json:"stored_bytes"`
	Pending     int64  `json:"pending"`
	Missing     int    `json:"missing"`
}

func (a *app) statsCommand() *cli.Command {
	var params statsParams
	return &cli.Command{
		Name:    "stats",
		Summary: "Summarize stored assets",
		Usage:   "assetstore stats [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("stats", &params) },
		Run: func(ctx context.Context, args []string) error {
			var results []projectStats
			if params.All {
				s, err := a.openStore(ctx, &params.commonParams, "stats")
				if err != nil {
					return err
				}
				defer s.Close()

				projects, err := s.store.Projects(ctx)
				if err != nil {
					return err
				}
				for _, projectID := range projects {
					stored, err := s.store.Stats(ctx, projectID)
					if err != nil {
						return err
					}
					results = append(results, projectStats{
						ProjectID:   projectID,
						Count:       stored.Count,
						Bytes:       stored.Bytes,
						StoredBytes: stored.StoredBytes,
						Pending:     stored.Pending,
					})
				}
			} else {
				s, err := a.open(ctx, &params.commonParams, "stats")
				if err != nil {
					return err
				}
				defer s.Close()

				stats, err := s.library.Stats(ctx)
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(a.stdout, projectStats{
					ProjectID:   params.Project,
					Count:       stats.Count,
					Bytes:       stats.Bytes,
					StoredBytes: stats.StoredBytes,
					Pending:     stats.Pending,
					Missing:     stats.Missing,
				}); done {
					return err
				}
				fmt.Fprintf(a.stdout, "%s: %s\n", params.Project, stats)
				return nil
			}

			if done, err := params.EmitJSON(a.stdout, results); done {
				return err
			}
			for _, result := range results {
				fmt.Fprintf(a.stdout, "%s: %d assets, %s (%s on disk), %d pending upload\n",
					result.ProjectID, result.Count, asset.FormatSize(result.Bytes),
					asset.FormatSize(result.StoredBytes), result.Pending)
			}
			return nil
		},
	}
}
