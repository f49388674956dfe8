/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/friendsincode/starboard/internal/dispatch"
	"github.com/friendsincode/starboard/internal/overlay"
	"github.com/friendsincode/starboard/internal/viewmodel"
)

var previewSeed string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the overlay's design preview frame",
	Long: `Mount the overlay in preview mode and print the frame a renderer would draw.

Preview mode arms no timers and subscribes to nothing, so the output shows
the first subbar line and the current player colors as they are seeded.

Examples:
  # Preview with default content
  starboard preview

  # Preview a seed file
  starboard preview --seed seeds/final.yaml
`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewSeed, "seed", "", "YAML or TOML scoreboard seed (defaults to STARBOARD_SEED_FILE)")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	path := previewSeed
	if path == "" {
		path = cfg.SeedFile
	}
	return writePreview(cmd.OutOrStdout(), path, zerolog.Nop())
}

// previewFrame is the printed preview.
type previewFrame struct {
	overlay.Frame
	Text    string                                    `json:"text"`
	Players [overlay.CompetitorCount]viewmodel.Player `json:"players"`
}

func writePreview(w io.Writer, seedPath string, logger zerolog.Logger) error {
	sb := viewmodel.New()
	if seedPath != "" {
		seed, err := viewmodel.LoadSeed(seedPath)
		if err != nil {
			return err
		}
		if err := sb.ApplySeed(seed); err != nil {
			return err
		}
	}

	clk := clock.RealClock{}
	loop := dispatch.New(logger)
	defer loop.Close()

	ov := overlay.New(overlay.Options{Preview: true}, clk, loop, logger)
	if err := ov.SetDataSource(sb); err != nil {
		return fmt.Errorf("bind scoreboard: %w", err)
	}
	if err := ov.Mount(); err != nil {
		return fmt.Errorf("mount preview: %w", err)
	}
	loop.Drain()
	defer func() {
		ov.Unmount()
		loop.Drain()
	}()

	out := previewFrame{Frame: ov.State().Frame(clk.Now()), Players: sb.Snapshot().Players}
	if text, err := sb.Text(overlay.Label(out.Label)); err == nil {
		out.Text = text
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
