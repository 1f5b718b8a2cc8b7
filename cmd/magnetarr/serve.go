// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/magnetarr/internal/api"
	"github.com/autobrr/magnetarr/internal/buildinfo"
	"github.com/autobrr/magnetarr/internal/metrics"
	"github.com/autobrr/magnetarr/internal/services/arr"
	"github.com/autobrr/magnetarr/pkg/version"
)

const shutdownTimeout = 30 * time.Second

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive Sonarr webhooks",
		Long: `Start an HTTP server that accepts Sonarr webhook connections on
/api/webhook/sonarr and runs the same pipeline as the custom script mode.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configDir, dryRun)
			if err != nil {
				return err
			}

			cfg.WatchLogSettings()

			a, err := newApp(cfg, arr.HookEvent{})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.NewServer(&api.Dependencies{
				Config:         cfg,
				Runner:         a.runner,
				Metrics:        a.metrics,
				Health:         a.healthChecks(),
				VersionChecker: version.NewChecker("autobrr", "magnetarr", buildinfo.UserAgent),
			})

			var metricsServer *metrics.Server
			if cfg.Config.MetricsEnabled {
				metricsServer = metrics.NewMetricsServer(a.metrics, cfg.Config.MetricsHost, cfg.Config.MetricsPort, cfg.Config.MetricsBasicAuthUsers)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(server.ListenAndServe)
			if metricsServer != nil {
				g.Go(func() error {
					if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				err := server.Shutdown(shutdownCtx)
				if metricsServer != nil {
					err = errors.Join(err, metricsServer.Shutdown(shutdownCtx))
				}
				return err
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "config directory or config.toml path")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log what would be added without touching the torrent client")
	return cmd
}
