// Copyright 2025 Crucible Ledger Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crucible-ledger/crucible/internal/config"
	"github.com/crucible-ledger/crucible/topology"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// bootstrapCommand writes starter configuration files: the current effective
// config and the built-in four-organization topology, ready to edit.
func bootstrapCommand() *cobra.Command {
	var outputDir string
	var force bool
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Write starter crucible.yaml and topology.yaml files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return fmt.Errorf("no config found in context")
			}
			if outputDir == "" {
				homeDir, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("cannot determine home directory: %w", err)
				}
				outputDir = filepath.Join(homeDir, ".crucible")
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outputDir, err)
			}
			topologyPath := filepath.Join(outputDir, "topology.yaml")
			cfg.Topology = topologyPath
			if err := writeYAML(
				filepath.Join(outputDir, "crucible.yaml"),
				cfg,
				force,
			); err != nil {
				return err
			}
			if err := writeYAML(
				topologyPath,
				topology.Default(),
				force,
			); err != nil {
				return err
			}
			fmt.Printf("wrote crucible.yaml and topology.yaml to %s\n", outputDir)
			return nil
		},
	}
	cmd.Flags().StringVar(
		&outputDir,
		"dir",
		"",
		"output directory (default ~/.crucible)",
	)
	cmd.Flags().BoolVar(
		&force,
		"force",
		false,
		"overwrite existing files",
	)
	return cmd
}

func writeYAML(path string, v any, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
