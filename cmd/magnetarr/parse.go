// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autobrr/magnetarr/pkg/episode"
	"github.com/autobrr/magnetarr/pkg/releases"
	"github.com/autobrr/magnetarr/pkg/titleparse"
)

func RunParseCommand() *cobra.Command {
	var (
		season     int
		seasonWord string
	)

	cmd := &cobra.Command{
		Use:   "parse <title>...",
		Short: "Show the episodes and search queries derived from a title",
		Example: `  magnetarr parse "Show S05E01E02 1080p WEB-DL"
  magnetarr parse --season 2 "Show Episodio 7"`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			builder := titleparse.NewQueryBuilder(releases.NewDefaultParser(), seasonWord)
			for i, title := range args {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				printParse(cmd.OutOrStdout(), builder, title, season)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&season, "season", 0, "season for titles that only name an episode")
	cmd.Flags().StringVar(&seasonWord, "season-word", titleparse.DefaultSeasonWord, "season phrase used in search queries")
	return cmd
}

func printParse(out io.Writer, builder *titleparse.QueryBuilder, title string, season int) {
	ids := titleparse.NormalizeWithSeason(title, season)

	fmt.Fprintf(out, "title:     %s\n", title)
	fmt.Fprintf(out, "episodes:  %s\n", formatIDs(ids))
	fmt.Fprintf(out, "series:    %s\n", titleparse.SeriesName(title))
	if n, ok := titleparse.SeasonNumber(title); ok {
		fmt.Fprintf(out, "season:    %d\n", n)
	}
	if q := builder.SeasonQuery(title); q != "" {
		fmt.Fprintf(out, "fallback:  %s\n", q)
	}

	target := titleparse.Target{Release: title}
	for _, id := range ids {
		if target.Season == 0 {
			target.Season = id.Season()
		}
		if id.Season() == target.Season && !id.IsSeasonPack() {
			target.Episodes = append(target.Episodes, id.Episode())
		}
	}
	for _, q := range builder.Queries(target) {
		fmt.Fprintf(out, "query:     %-14s %s\n", q.Kind, q.Text)
	}
}

func formatIDs(ids []episode.ID) string {
	if len(ids) == 0 {
		return "-"
	}
	codes := make([]string, len(ids))
	for i, id := range ids {
		codes[i] = id.String()
	}
	return strings.Join(codes, " ")
}
