package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/logging"
	"github.com/vovakirdan/cloudsync/internal/node"
	"github.com/vovakirdan/cloudsync/internal/observer"
	"github.com/vovakirdan/cloudsync/internal/platform/tui"
	"github.com/vovakirdan/cloudsync/internal/replication"
	"github.com/vovakirdan/cloudsync/internal/transport/ws"
)

// defaultWatchLog is where watch logs, since the terminal belongs to the view.
const defaultWatchLog = "~/.cloudsync/watch.log"

var (
	flagURL      string
	flagFallback bool
	flagDialWait time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Observe a host in the terminal",
	Long: `Connect to a host as an observer and draw its world in the terminal.

Controls:
  Arrows/WASD  - Move the anchor
  C            - Back to the origin
  Ctrl+S       - Save a screenshot
  ?            - Toggle help
  Q/Ctrl+C     - Quit

With --fallback, a host that cannot be reached is replaced by a local one
running in this process (standalone mode).

Examples:
  cloudsync watch
  cloudsync watch --url ws://example.com:8080/ws
  cloudsync watch --fallback --seed 7`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagURL, "url", "", "Host websocket URL (default derived from server.addr and server.path)")
	watchCmd.Flags().BoolVar(&flagFallback, "fallback", false, "Run a local host when the remote one is unreachable")
	watchCmd.Flags().DurationVar(&flagDialWait, "dial-timeout", 5*time.Second, "How long to wait for the host")
}

func runWatch(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Log.File == "" {
		cfg.Log.File = defaultWatchLog
	}

	logger, logCloser, err := logging.New(logging.Options{Config: cfg.Log, Prefix: "watch"})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	width, height := 80, 24 // Defaults
	if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
		width, height = w, h
	}
	viewOpts := tui.Options{View: cfg.View, Width: width, Height: height}

	url := flagURL
	if url == "" {
		url = defaultURL(cfg.Server)
	}

	inbox := observer.NewInbox(cfg.Replication.SessionBuffer)
	dialCtx, cancel := context.WithTimeout(context.Background(), flagDialWait)
	client, err := ws.Dial(dialCtx, url, inbox)
	cancel()
	if err != nil {
		if !flagFallback {
			return fmt.Errorf("cannot reach host at %s: %w (use --fallback to run standalone)", url, err)
		}
		logger.Warn("host unreachable, running standalone", "url", url, "error", err)
		return watchStandalone(cfg, viewOpts)
	}
	defer client.Close()

	logger.Info("connected", "url", url)
	viewOpts.Lost = client.Done()
	if err := tui.Run(node.NewObserver(inbox, client), viewOpts); err != nil {
		return err
	}
	if cerr := client.Err(); cerr != nil && !errors.Is(cerr, ws.ErrClosed) {
		logger.Warn("connection ended", "error", cerr)
	}
	return nil
}

func watchStandalone(cfg config.Config, viewOpts tui.Options) error {
	seed := cfg.World.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	n, err := node.NewStandalone(replication.Options{
		World:       cfg.World,
		Relation:    cfg.Relation,
		Replication: cfg.Replication,
		Seed:        seed,
		Autopilot:   cfg.Server.Autopilot,
	})
	if err != nil {
		return err
	}
	defer n.Close()

	host, err := n.Host()
	if err != nil {
		return err
	}
	viewOpts.Follow = func() core.Vec2 { return host.Stats().Anchor }
	return tui.Run(n, viewOpts)
}

// defaultURL builds the websocket URL of a host listening locally.
func defaultURL(srv config.ServerConfig) string {
	addr := srv.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "ws://" + addr + srv.Path
}
