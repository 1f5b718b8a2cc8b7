// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/magnetarr/internal/pipeline"
	"github.com/autobrr/magnetarr/internal/services/arr"
	"github.com/autobrr/magnetarr/pkg/redact"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type hookOptions struct {
	configDir string
	dryRun    bool
	threadID  string
	release   string
	season    string
	episodes  string
}

func newRootCommand() *cobra.Command {
	var opts hookOptions

	cmd := &cobra.Command{
		Use:   "magnetarr",
		Short: "Queue the episodes Sonarr needs from forum release threads",
		Long: `magnetarr runs as a Sonarr custom script. On Grab it finds the forum thread of
the release, picks the magnets of the episodes Sonarr wants and adds them to the
torrent client. Run "magnetarr serve" to receive Sonarr webhooks instead.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(cmd.Context(), cmd.OutOrStdout(), opts, os.LookupEnv)
		},
	}

	cmd.Flags().StringVar(&opts.configDir, "config-dir", "", "config directory or config.toml path")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log what would be added without touching the torrent client")
	cmd.Flags().StringVar(&opts.threadID, "thread", "", "use this forum thread id instead of searching")
	cmd.Flags().StringVar(&opts.release, "release", "", "release title, overrides sonarr_release_title")
	cmd.Flags().StringVar(&opts.season, "season", "", "season number, overrides the Sonarr variables")
	cmd.Flags().StringVar(&opts.episodes, "episodes", "", "comma separated episode numbers, overrides the Sonarr variables")

	cmd.AddCommand(
		RunServeCommand(),
		RunParseCommand(),
		RunExtractCommand(),
		RunGenerateConfigCommand(),
		RunVersionCommand(),
	)
	return cmd
}

func runHook(ctx context.Context, out io.Writer, opts hookOptions, lookup arr.LookupFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ev := arr.EventFromEnv(lookup)
	if opts.release != "" {
		ev.ReleaseTitle = opts.release
		if ev.EventType == "" {
			ev.EventType = arr.EventGrab
		}
	}
	if opts.season != "" {
		ev.Season = opts.season
	}
	if opts.episodes != "" {
		ev.Episodes = opts.episodes
	}

	if ev.IsTest() {
		log.Info().Msg("Sonarr test event received")
		fmt.Fprintln(out, "Test event received, configuration looks reachable from Sonarr")
		return nil
	}
	if ev.EventType == "" && ev.ReleaseTitle == "" {
		return errors.New("no Sonarr event in the environment, pass --release to run by hand")
	}
	if !strings.EqualFold(ev.EventType, arr.EventGrab) && !strings.EqualFold(ev.EventType, arr.EventDownload) {
		log.Info().Str("event", ev.EventType).Msg("nothing to do for this event")
		return nil
	}

	cfg, err := loadConfig(opts.configDir, opts.dryRun)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, ev)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.runner.Run(ctx, pipeline.Request{Event: ev, ThreadID: opts.threadID})
	printReport(out, report)

	// Sonarr marks the grab as failed on a non-zero exit, which is wrong when
	// the forum simply has nothing extra to offer.
	if errors.Is(err, pipeline.ErrThreadNotFound) || errors.Is(err, pipeline.ErrNothingFound) {
		log.Warn().Err(err).Str("release", ev.ReleaseTitle).Msg("nothing queued")
		return nil
	}
	if err != nil {
		log.Error().Err(redact.URLError(err)).Str("release", ev.ReleaseTitle).Msg("run failed")
	}
	return err
}

func printReport(out io.Writer, report *pipeline.Report) {
	if report == nil {
		return
	}

	fmt.Fprintf(out, "release:  %s\n", report.Release)
	if report.Thread.ID != "" {
		fmt.Fprintf(out, "thread:   %s %s\n", report.Thread.ID, report.Thread.Title)
	}
	if report.Needed.Source != "" {
		needed := "every magnet"
		if !report.Needed.All() {
			needed = report.Needed.Needed.String()
		}
		fmt.Fprintf(out, "needed:   %s (%s)\n", needed, report.Needed.Source)
	}

	prefix := ""
	if report.DryRun {
		prefix = "[dry run] "
	}
	for _, m := range report.Added {
		fmt.Fprintf(out, "%sadded    %s\n", prefix, redact.Magnet(m))
	}
	for _, m := range report.Existing {
		fmt.Fprintf(out, "present  %s\n", redact.Magnet(m))
	}
	for _, m := range report.Failed {
		fmt.Fprintf(out, "failed   %s\n", redact.Magnet(m))
	}
	if report.OriginalRemoved {
		fmt.Fprintf(out, "%sremoved original torrent %s\n", prefix, report.Original)
	}
}
