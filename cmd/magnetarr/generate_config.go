// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/autobrr/magnetarr/internal/config"
)

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Write a commented config.toml with a random API key.
An existing file is never overwritten.`,
		Example: `  magnetarr generate-config
  magnetarr generate-config --config-dir /config`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configDir == "" {
				configDir = config.GetDefaultConfigDir()
			}

			configPath := configDir
			if filepath.Ext(configPath) != ".toml" {
				configPath = filepath.Join(configDir, "config.toml")
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(configPath); err == nil {
				fmt.Fprintf(out, "Configuration file already exists at %s. Skipping generation.\n", configPath)
				return nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to check %s: %w", configPath, err)
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			fmt.Fprintf(out, "Configuration file created successfully at %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "directory to write config.toml to, or a .toml path")
	return cmd
}
