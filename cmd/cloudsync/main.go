// cloudsync runs an authoritative platform and bridge world and replicates it
// to any number of observers.
//
// Usage:
//
//	cloudsync serve             - Run the host with websocket (and optional SSH) observers
//	cloudsync watch             - Observe a host in the terminal
//	cloudsync replay <file>     - Replay a journal into a local mirror
//	cloudsync sessions          - Show observer session history
//	cloudsync config            - Print or check the effective configuration
//
// Global flags:
//
//	--config <path>     - Config file (default search: ~/.cloudsync, ./configs, embedded)
//	--log-level <level> - Override log.level
//	--seed <value>      - Override world.seed (0 = time based)
//	--db <path>         - Override storage.db_path
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/cloudsync/internal/config"
)

var (
	// Global flags
	flagConfig   string
	flagLogLevel string
	flagSeed     int64
	flagDBPath   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cloudsync",
	Short: "Authoritative cloud platform world with replicated observers",
	Long: `cloudsync keeps a population of drifting cloud platforms around a moving
anchor, connects nearby platforms with bridges, and streams every change to
connected observers so they hold an identical copy of the world.

Available commands:
  serve     - Run the host
  watch     - Observe a host in the terminal
  replay    - Replay a recorded journal
  sessions  - Show observer session history
  config    - Print or check the configuration

Examples:
  cloudsync serve
  cloudsync serve --ssh :23234
  cloudsync watch --url ws://localhost:8080/ws
  cloudsync watch --fallback
  cloudsync replay ~/.cloudsync/journal/journal-<run>.jsonl.zst
  cloudsync sessions --limit 20`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "World RNG seed (0 = keep config value)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to session history database")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the configuration and applies the global flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagSeed != 0 {
		cfg.World.Seed = flagSeed
	}
	if flagDBPath != "" {
		cfg.Storage.DBPath = flagDBPath
	}
	return cfg, nil
}
