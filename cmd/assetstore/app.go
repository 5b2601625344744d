// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/assetdb"
	"github.com/bureau-foundation/assetstore/lib/assetsync"
	"github.com/bureau-foundation/assetstore/lib/cli"
	"github.com/bureau-foundation/assetstore/lib/config"
	"github.com/bureau-foundation/assetstore/lib/library"
	"github.com/bureau-foundation/assetstore/lib/remote"
	"github.com/bureau-foundation/assetstore/lib/version"
)

// app carries the process streams so commands can be run in tests.
type app struct {
	stdin  io.Reader
	stdout io.Writer

	// logger overrides the stderr command logger when set.
	logger *slog.Logger
}

func newApp(stdin io.Reader, stdout io.Writer, logger *slog.Logger) *app {
	return &app{stdin: stdin, stdout: stdout, logger: logger}
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "assetstore",
		Summary:     "Content-addressed asset store",
		Description: "Store, resolve, and synchronize the binary assets referenced by authored content.",
		Subcommands: []*cli.Command{
			a.putCommand(),
			a.getCommand(),
			a.listCommand(),
			a.rmCommand(),
			a.renameCommand(),
			a.resolveCommand(),
			a.importCommand(),
			a.syncCommand(),
			a.statsCommand(),
			a.mirrorCommand(),
			a.versionCommand(),
		},
	}
}

func (a *app) versionCommand() *cli.Command {
	var params cli.JSONOutput
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("version", &params) },
		Run: func(ctx context.Context, args []string) error {
			if done, err := params.EmitJSON(a.stdout, version.Current()); done {
				return err
			}
			fmt.Fprintln(a.stdout, version.Full())
			return nil
		},
	}
}

// commonParams are the flags every store command accepts.
type commonParams struct {
	Config  string `flag:"config" desc:"config file (default: $ASSETSTORE_CONFIG)"`
	Project string `flag:"project,p" desc:"project id" default:"default"`
	Verbose bool   `flag:"verbose,v" desc:"log debug detail"`
}

func (p *commonParams) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p.Config != "" {
		cfg, err = config.LoadFile(p.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) commandLogger(params *commonParams, command string) *slog.Logger {
	logger := a.logger
	if logger == nil {
		level := slog.LevelWarn
		if params.Verbose {
			level = slog.LevelDebug
		}
		logger = cli.NewCommandLogger(level)
	}
	return logger.With("command", command)
}

// session is one command's open store and library.
type session struct {
	config   *config.Config
	logger   *slog.Logger
	store    *assetdb.Store
	library  *library.Library
	registry *prometheus.Registry
}

// openStore opens the configured database without a library, for
// commands that span projects.
func (a *app) openStore(ctx context.Context, params *commonParams, command string) (*session, error) {
	cfg, err := params.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := a.commandLogger(params, command)

	store := assetdb.New(assetdb.Config{
		Path:        cfg.Paths.Database,
		PoolSize:    cfg.Storage.PoolSize,
		Compression: cfg.Storage.Compression,
		Logger:      logger,
	})
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return &session{config: cfg, logger: logger, store: store}, nil
}

// open opens the store and the project's library.
func (a *app) open(ctx context.Context, params *commonParams, command string) (*session, error) {
	s, err := a.openStore(ctx, params, command)
	if err != nil {
		return nil, err
	}
	s.logger = s.logger.With("project_id", params.Project)

	var remoteAPI assetsync.Remote
	if !s.config.Offline() {
		client, err := remote.NewClient(remote.Config{
			BaseURL: s.config.Remote.BaseURL,
			Timeout: s.config.RemoteTimeout(),
			Logger:  s.logger,
		})
		if err != nil {
			s.store.Close()
			return nil, err
		}
		remoteAPI = client
	}

	s.registry = prometheus.NewRegistry()
	lib, err := library.Open(ctx, library.Config{
		ProjectID:        params.Project,
		Store:            s.store,
		Remote:           remoteAPI,
		StateDir:         s.config.Paths.State,
		Origin:           s.config.Handles.Origin,
		AutoFetch:        s.config.Sync.AutoFetch,
		FetchTimeout:     s.config.FetchTimeout(),
		FetchConcurrency: s.config.Sync.FetchConcurrency,
		Metrics:          assetsync.NewMetrics(s.registry),
		Logger:           s.logger,
	})
	if err != nil {
		s.store.Close()
		return nil, err
	}
	s.library = lib
	return s, nil
}

// Close closes the library, then the store.
func (s *session) Close() error {
	var errs []error
	if s.library != nil {
		if err := s.library.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// parseIDArg accepts a bare id or a reference token.
func parseIDArg(arg string) (asset.ID, error) {
	if id, err := asset.ParseID(arg); err == nil {
		return id, nil
	}
	if references := asset.FindReferences(arg); len(references) == 1 {
		return references[0].ID, nil
	}
	return "", fmt.Errorf("%q is not an asset id or reference", arg)
}

// readInput returns the contents of path, or of stdin when path is
// empty or "-".
func (a *app) readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(path)
}
