package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/cloudsync/internal/journal"
	"github.com/vovakirdan/cloudsync/internal/observer"
	"github.com/vovakirdan/cloudsync/internal/world"
)

var (
	flagToTick uint64
	flagList   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a journal into a local mirror",
	Long: `Feed a journal written by 'cloudsync serve' into a fresh mirror and print
what an observer would hold at the end (or at --to-tick).

Examples:
  cloudsync replay journal-<run>.jsonl.zst
  cloudsync replay journal-<run>.jsonl.zst --to-tick 500 --list`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().Uint64Var(&flagToTick, "to-tick", 0, "Stop after this tick (0 = whole journal)")
	replayCmd.Flags().BoolVar(&flagList, "list", false, "Print every platform and bridge")
}

func runReplay(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m := observer.NewMirror(observer.Options{
		Variants:            world.VariantsFromConfig(cfg.World.Variants),
		BridgeWidth:         cfg.Relation.BridgeWidth,
		CorrectionThreshold: cfg.Replication.CorrectionThreshold,
		Blend:               cfg.Replication.Blend,
	})

	dt := 1 / float64(max(1, cfg.Replication.TickHz))
	var last uint64
	n, err := journal.Replay(args[0], flagToTick, func(e journal.Entry) {
		if e.Tick > last {
			m.Advance(float64(e.Tick-last) * dt)
			last = e.Tick
		}
		m.Apply(e.Msg)
	})
	if err != nil {
		return err
	}

	platforms, bridges := m.Count()
	fmt.Printf("Replayed %d messages up to tick %d\n", n, last)
	fmt.Printf("  platforms: %d\n", platforms)
	fmt.Printf("  bridges:   %d\n", bridges)
	fmt.Printf("  corrections: %d, ignored: %d\n", m.Stats().Corrections, m.Stats().Ignored)

	if !flagList {
		return nil
	}
	fmt.Println()
	fmt.Printf("  %-6s  %-8s  %-20s  %s\n", "ID", "Variant", "Position", "Scale")
	variants := m.Variants()
	for _, p := range m.Platforms() {
		name := fmt.Sprintf("%d", p.Variant)
		if p.Variant >= 0 && p.Variant < len(variants) {
			name = variants[p.Variant].Name
		}
		pos := fmt.Sprintf("(%.2f, %.2f)", p.Pos.X, p.Pos.Y)
		fmt.Printf("  %-6d  %-8s  %-20s  %.2f\n", p.ID, name, pos, p.Scale)
	}
	fmt.Println()
	for _, b := range m.Bridges() {
		fmt.Printf("  bridge %d: %d -> %d\n", b.ID, b.LowerID, b.UpperID)
	}
	return nil
}
