package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/cloudsync/internal/platform/tui"
	"github.com/vovakirdan/cloudsync/internal/storage"
)

var (
	flagRunID string
	flagLimit int
	flagPlain bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show observer session history",
	Long: `Show the observers that joined past runs and how much was sent to them.

In a terminal this opens a browsable table (tab switches runs). With --plain,
or when output is not a terminal, it prints plain text instead.

Examples:
  cloudsync sessions
  cloudsync sessions --plain --limit 20
  cloudsync sessions --run 6f1c2a9e-...`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&flagRunID, "run", "", "Run ID (default: most recent run)")
	sessionsCmd.Flags().IntVar(&flagLimit, "limit", 50, "Maximum sessions to print")
	sessionsCmd.Flags().BoolVar(&flagPlain, "plain", false, "Print plain text instead of the table")
}

func runSessions(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.DBPath == "" {
		return fmt.Errorf("session history is disabled (storage.db_path is empty)")
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	fd := int(os.Stdout.Fd())
	if !flagPlain && term.IsTerminal(fd) {
		width, height, sizeErr := term.GetSize(fd)
		if sizeErr != nil {
			width, height = 80, 24
		}
		return tui.RunSessions(store, flagRunID, width, height)
	}
	return printSessions(store)
}

func printSessions(store *storage.Store) error {
	runID := flagRunID
	if runID == "" {
		runs, err := store.RecentRuns(1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			fmt.Println()
			fmt.Println("Start one with 'cloudsync serve'.")
			return nil
		}
		runID = runs[0].RunID
	}

	run, err := store.RunByID(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("unknown run %q", runID)
	}

	sessions, err := store.ListSessions(runID, flagLimit)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (seed %d, started %s)\n", run.RunID, run.Seed, run.StartedAt.Local().Format("2006-01-02 15:04"))
	fmt.Println()
	if len(sessions) == 0 {
		fmt.Println("No observer sessions recorded.")
		return nil
	}

	fmt.Printf("  %-10s  %-16s  %-10s  %-8s  %-8s  %s\n", "Conn", "Joined", "Duration", "Sent", "Dropped", "Snapshot")
	fmt.Printf("  %-10s  %-16s  %-10s  %-8s  %-8s  %s\n", "----", "------", "--------", "----", "-------", "--------")
	for _, s := range sessions {
		row := tui.SessionRow(s)
		fmt.Printf("  %-10s  %-16s  %-10s  %-8s  %-8s  %s\n", row[0], s.JoinedAt.Local().Format("2006-01-02 15:04"), row[2], row[3], row[4], row[5])
	}

	stats, err := store.GetRunStats(runID)
	if err == nil {
		fmt.Println()
		fmt.Printf("Total: %d sessions, %d sent, %d dropped", stats.Sessions, stats.Sent, stats.Dropped)
		if !stats.LastLeft.IsZero() {
			fmt.Printf(", last left %s", stats.LastLeft.Local().Format(time.Stamp))
		}
		fmt.Println()
	}
	return nil
}
