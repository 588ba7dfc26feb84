package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/cloudsync/internal/config"
	"github.com/vovakirdan/cloudsync/internal/journal"
	"github.com/vovakirdan/cloudsync/internal/logging"
	"github.com/vovakirdan/cloudsync/internal/platform/tui"
	"github.com/vovakirdan/cloudsync/internal/replication"
	"github.com/vovakirdan/cloudsync/internal/storage"
	"github.com/vovakirdan/cloudsync/internal/transport/ws"
)

var (
	flagSSHAddr     string
	flagHostKey     string
	flagAddr        string
	flagIdleTimeout int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authoritative host",
	Long: `Run the host: it owns the world, decides every spawn and bridge, and
streams changes to observers over websockets.

With --ssh, the same terminal view that 'cloudsync watch' shows is served over
SSH; every SSH session is an observer of this host.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.cloudsync/host_key

Examples:
  cloudsync serve                      # Websocket observers on :8080/ws
  cloudsync serve --addr :9000         # Listen on port 9000
  cloudsync serve --ssh :23234         # Also serve the SSH view
  cloudsync serve --seed 42            # Reproducible world`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Websocket listen address (default from config)")
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH observer address, e.g. :23234 (default from config, empty disables)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().IntVar(&flagIdleTimeout, "idle-timeout", 30, "SSH idle timeout in minutes before disconnecting")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	if flagSSHAddr != "" {
		cfg.Server.SSHAddr = flagSSHAddr
	}
	if flagHostKey != "" {
		cfg.Server.HostKeyPath = flagHostKey
	}

	logger, logCloser, err := logging.New(logging.Options{Config: cfg.Log, Prefix: "cloudsync"})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	seed := cfg.World.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := uuid.NewString()

	opts := replication.Options{
		World:       cfg.World,
		Relation:    cfg.Relation,
		Replication: cfg.Replication,
		Seed:        seed,
		Autopilot:   cfg.Server.Autopilot,
		RunID:       runID,
		Logger:      logger.WithPrefix("host"),
	}

	if cfg.Storage.DBPath != "" {
		store, storeErr := openLedger(cfg, runID, seed)
		if storeErr != nil {
			// The ledger is history only; the host runs without it.
			logger.Warn("session history disabled", "error", storeErr)
		} else {
			defer store.Close()
			opts.Recorder = store
		}
	}

	if cfg.Storage.JournalDir != "" {
		w, journalErr := openJournal(cfg.Storage.JournalDir, runID)
		if journalErr != nil {
			return journalErr
		}
		defer func() {
			if err := w.Close(); err != nil {
				logger.Error("journal close failed", "error", err)
			}
		}()
		opts.Journal = w
		logger.Info("journaling", "path", w.Path())
	}

	host := replication.NewHost(opts)

	wsServer, err := ws.NewServer(host, ws.ServerOptions{
		CompressAbove: cfg.Replication.SnapshotCompressBytes,
		AnchorRateHz:  cfg.Server.AnchorRateHz,
		AnchorBurst:   cfg.Server.AnchorBurst,
		Logger:        logger.WithPrefix("ws"),
	})
	if err != nil {
		return err
	}
	defer wsServer.Close()

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, wsServer)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sshServer *tui.SSHServer
	if cfg.Server.SSHAddr != "" {
		sshServer, err = newSSHServer(host, cfg, logger)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return host.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr, "path", cfg.Server.Path, "run", runID, "seed", seed)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if sshServer != nil {
		g.Go(func() error {
			return sshServer.ListenAndServe(ctx)
		})
	}

	err = g.Wait()
	logStats(logger, host, wsServer)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openLedger(cfg config.Config, runID string, seed int64) (*storage.Store, error) {
	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	doc, err := config.Marshal(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	run := storage.Run{RunID: runID, StartedAt: time.Now(), Seed: seed, ConfigYAML: string(doc)}
	if err := store.CreateRun(run); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func openJournal(dir, runID string) (*journal.Writer, error) {
	dir, err := config.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create journal directory: %w", err)
	}
	return journal.Create(journal.PathFor(dir, runID))
}

func newSSHServer(host *replication.Host, cfg config.Config, logger *log.Logger) (*tui.SSHServer, error) {
	sshCfg := tui.DefaultSSHServerConfig()
	sshCfg.Address = cfg.Server.SSHAddr
	sshCfg.IdleTimeout = time.Duration(flagIdleTimeout) * time.Minute
	sshCfg.View = cfg.View
	sshCfg.InboxSize = cfg.Replication.SessionBuffer
	if cfg.Server.HostKeyPath != "" {
		path, err := config.ExpandHome(cfg.Server.HostKeyPath)
		if err != nil {
			return nil, err
		}
		sshCfg.HostKeyPath = path
	}
	return tui.NewSSHServer(host, sshCfg, logger.WithPrefix("ssh"))
}

func logStats(logger *log.Logger, host *replication.Host, wsServer *ws.Server) {
	hs := host.Stats()
	st := wsServer.Stats()
	logger.Info("stopped",
		"run", hs.RunID,
		"ticks", hs.Tick,
		"sent", hs.Sent,
		"dropped", hs.Dropped,
		"accepted", st.Accepted,
		"rate_limited", st.RateLimited,
		"malformed", st.Malformed,
	)
}
