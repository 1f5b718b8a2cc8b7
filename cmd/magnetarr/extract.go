// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/autobrr/magnetarr/internal/extract"
	"github.com/autobrr/magnetarr/pkg/episode"
	"github.com/autobrr/magnetarr/pkg/magnet"
	"github.com/autobrr/magnetarr/pkg/redact"
	"github.com/autobrr/magnetarr/pkg/titleparse"
)

type extractOptions struct {
	file        string
	release     string
	threadTitle string
	season      string
	episodes    string
	unresolved  string
	seasonWord  string
}

func RunExtractCommand() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run the magnet extraction on a saved thread page",
		Long: `Run the extraction strategies on an HTML file without contacting the forum or
the torrent client. Without --season every magnet found is listed.`,
		Example: `  magnetarr extract --file thread.html --release "Show S02E03 1080p"
  magnetarr extract --file thread.html --release "Show S02" --season 2 --episodes 3,4`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "saved thread page")
	cmd.Flags().StringVar(&opts.release, "release", "", "release title")
	cmd.Flags().StringVar(&opts.threadTitle, "thread-title", "", "thread title, defaults to the page title")
	cmd.Flags().StringVar(&opts.season, "season", "", "season to select")
	cmd.Flags().StringVar(&opts.episodes, "episodes", "", "comma separated episodes to select, empty for the whole season")
	cmd.Flags().StringVar(&opts.unresolved, "unresolved", "reject", "what to do with magnets without episode context: reject or season")
	cmd.Flags().StringVar(&opts.seasonWord, "season-word", titleparse.DefaultSeasonWord, "season phrase used in fallback queries")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runExtract(cmd *cobra.Command, opts extractOptions) error {
	policy, err := extract.ParseUnresolvedPolicy(opts.unresolved)
	if err != nil {
		return err
	}

	var needed episode.Needed
	if opts.season != "" {
		needed, err = episode.ParseNeeded(opts.season, opts.episodes)
		if err != nil {
			return err
		}
	}

	page, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read thread page: %w", err)
	}

	res := extract.NewOrchestrator(extract.WithSeasonWord(opts.seasonWord)).Extract(cmd.Context(), extract.Input{
		ReleaseTitle: opts.release,
		ThreadTitle:  opts.threadTitle,
		HTML:         string(page),
		Season:       needed.Season(),
	})

	out := cmd.OutOrStdout()
	printAttempts(out, res)

	var selected []magnet.Candidate
	if opts.season == "" {
		selected = magnet.Dedupe(res.Found())
	} else {
		selected = extract.Filter(res.Associations, needed, extract.FilterOptions{
			Unresolved: policy,
		})
		fmt.Fprintf(out, "needed:    %s\n", needed)
	}

	for _, c := range selected {
		fmt.Fprintf(out, "magnet:    %s %s\n", episodesOf(res.Associations, c), redact.Magnet(c.URI))
	}
	fmt.Fprintf(out, "selected:  %d of %d\n", len(selected), len(res.Associations))
	if res.SeasonQuery != "" {
		fmt.Fprintf(out, "fallback:  %s\n", res.SeasonQuery)
	}
	return nil
}

func printAttempts(out io.Writer, res extract.Result) {
	for _, a := range res.Attempts {
		status := "ok"
		if !a.Success {
			status = a.Reason
		}
		fmt.Fprintf(out, "strategy:  %-9s found=%d associated=%d %s\n", a.Strategy, a.Found, a.Associated, status)
	}
	fmt.Fprintf(out, "result:    %s\n", res.Strategy)
}

func episodesOf(assocs []extract.Association, c magnet.Candidate) string {
	for _, a := range assocs {
		if a.Magnet.Key() == c.Key() {
			return formatIDs(a.Episodes)
		}
	}
	return "-"
}
