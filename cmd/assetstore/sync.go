// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/assetstore/lib/assetsync"
	"github.com/bureau-foundation/assetstore/lib/cli"
	"github.com/bureau-foundation/assetstore/lib/httpserver"
)

type syncParams struct {
	commonParams
	cli.JSONOutput
	Watch         bool          `flag:"watch,w" desc:"keep reconciling until interrupted"`
	Interval      time.Duration `flag:"interval" desc:"period of --watch passes (default: sync.interval from config)"`
	MetricsListen string        `flag:"metrics-listen" desc:"serve Prometheus metrics on this address during --watch"`
}

func (a *app) syncCommand() *cli.Command {
	var params syncParams
	return &cli.Command{
		Name:    "sync",
		Summary: "Reconcile the project with the remote",
		Description: `Upload pending assets, discover assets only the remote has, and fetch
every missing asset. Upload and download failures are reported and
retried on the next pass.`,
		Usage: "assetstore sync [flags]",
		Examples: []cli.Example{
			{Description: "One pass", Command: "assetstore sync -p lesson-1"},
			{Description: "Reconcile every minute with metrics", Command: "assetstore sync -p lesson-1 --watch --interval 1m --metrics-listen 127.0.0.1:9108"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("sync", &params) },
		Run: func(ctx context.Context, args []string) error {
			if params.MetricsListen != "" && !params.Watch {
				return fmt.Errorf("sync: --metrics-listen requires --watch")
			}

			s, err := a.open(ctx, &params.commonParams, "sync")
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.library.Sync(ctx)
			if errors.Is(err, assetsync.ErrNoRemote) {
				return fmt.Errorf("sync: remote.base_url is not configured")
			}
			if err != nil {
				return err
			}
			if !params.Watch {
				return a.printSyncResult(&params, result)
			}

			interval := params.Interval
			if interval <= 0 {
				interval = s.config.SyncInterval()
			}

			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error {
				return s.library.Reconciler().Run(groupCtx, interval)
			})
			if params.MetricsListen != "" {
				server, err := httpserver.New(httpserver.Config{
					Address: params.MetricsListen,
					Handler: promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
					Logger:  s.logger,
				})
				if err != nil {
					return err
				}
				group.Go(func() error {
					return server.Serve(groupCtx)
				})
			}
			return group.Wait()
		},
	}
}

func (a *app) printSyncResult(params *syncParams, result assetsync.ReconcileResult) error {
	if done, err := params.EmitJSON(a.stdout, result); done {
		return err
	}
	fmt.Fprintf(a.stdout, "discovered %d, uploaded %d (%d failed), downloaded %d (%d failed)\n",
		result.Discovered, result.Upload.Uploaded, result.Upload.Failed,
		result.Fetch.Downloaded, result.Fetch.Failed)
	if result.Upload.Failed > 0 || result.Fetch.Failed > 0 {
		return &cli.ExitError{Code: 2}
	}
	return nil
}
