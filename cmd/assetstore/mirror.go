// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assetstore/lib/cli"
	"github.com/bureau-foundation/assetstore/lib/httpserver"
	"github.com/bureau-foundation/assetstore/lib/remote/mirror"
)

type mirrorParams struct {
	commonParams
	Listen string `flag:"listen" desc:"address to serve on" default:"127.0.0.1:8750"`
}

// mirrorHandler serves the asset endpoints for store plus /metrics.
func mirrorHandler(store mirror.Store, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", mirror.New(mirror.Config{Store: store, Logger: logger}))
	return mux
}

func (a *app) mirrorCommand() *cli.Command {
	var params mirrorParams
	return &cli.Command{
		Name:    "mirror",
		Summary: "Serve the local database as a remote asset server",
		Description: `Serve every project in the configured database over the remote asset
protocol, so other stores can use this one as remote.base_url.`,
		Usage: "assetstore mirror [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("mirror", &params) },
		Run: func(ctx context.Context, args []string) error {
			s, err := a.openStore(ctx, &params.commonParams, "mirror")
			if err != nil {
				return err
			}
			defer s.Close()

			gin.SetMode(gin.ReleaseMode)
			server, err := httpserver.New(httpserver.Config{
				Address: params.Listen,
				Handler: mirrorHandler(s.store, s.logger),
				Logger:  s.logger,
			})
			if err != nil {
				return err
			}
			return server.Serve(ctx)
		},
	}
}
