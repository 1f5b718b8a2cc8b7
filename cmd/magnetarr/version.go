// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/autobrr/magnetarr/internal/buildinfo"
	"github.com/autobrr/magnetarr/pkg/version"
)

func RunVersionCommand() *cobra.Command {
	var (
		check   bool
		asJSON  bool
		apiBase string
	)

	cmd := &cobra.Command{
		Use:          "version",
		Short:        "Print version information",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if asJSON {
				data, err := buildinfo.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			} else {
				fmt.Fprint(out, buildinfo.String())
			}

			if !check {
				return nil
			}

			var opts []version.Option
			if apiBase != "" {
				opts = append(opts, version.WithBaseURL(apiBase))
			}
			checker := version.NewChecker("autobrr", "magnetarr", buildinfo.UserAgent, opts...)

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			newer, release, err := checker.CheckNewVersion(ctx, buildinfo.Version)
			if err != nil {
				return fmt.Errorf("failed to check for updates: %w", err)
			}
			if !newer {
				fmt.Fprintln(out, "You are running the latest version")
				return nil
			}
			fmt.Fprintf(out, "A new version is available: %s\n%s\n", release.TagName, release.HTMLURL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print build information as JSON")
	cmd.Flags().StringVar(&apiBase, "api-url", "", "releases API base URL")
	_ = cmd.Flags().MarkHidden("api-url")
	return cmd
}
