package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/alerting"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/api"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/api/health"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/notifier"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/scheduler"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/storage"
	"github.com/jonavoidd/smart-coral-diagnostics-server/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "coral-server",
	Short: "Coral diagnostics server - bleaching alert monitoring",
	Long: `Coral diagnostics server evaluates bleaching case counts per reef area,
maintains public alerts with severity tiers, and serves them over a REST API.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coral-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single evaluation cycle and exit",
	RunE:  runScan,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*Config, error) {
	var cfg *Config
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose
	return cfg, nil
}

func openStorage(cfg *Config) (*storage.SQLiteStorage, error) {
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)
	return store, nil
}

func buildDispatcher(cfg *Config) (*notifier.Dispatcher, *notifier.WebSocketHub, error) {
	dispatcher := notifier.NewDispatcherWithRateLimit(notifier.RateLimitConfig{
		MaxPerWindow: cfg.Notify.MaxPerWindow,
		Window:       cfg.Notify.Window,
		Enabled:      true,
	})

	if cfg.Notify.Email.Enabled {
		email, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:       cfg.Notify.Email.Host,
			Port:       cfg.Notify.Email.Port,
			Username:   cfg.Notify.Email.Username,
			Password:   cfg.Notify.Email.Password,
			From:       cfg.Notify.Email.From,
			Recipients: cfg.Notify.Email.Recipients,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("email notifier: %w", err)
		}
		dispatcher.Register(email)
		log.Printf("email notifications enabled (%d recipients)", len(cfg.Notify.Email.Recipients))
	}

	if cfg.Notify.Slack.Enabled {
		slack, err := notifier.NewSlackNotifier(notifier.SlackConfig{
			WebhookURL: cfg.Notify.Slack.WebhookURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("slack notifier: %w", err)
		}
		dispatcher.Register(slack)
		log.Printf("slack notifications enabled")
	}

	var hub *notifier.WebSocketHub
	if cfg.Notify.WebSocket.Enabled {
		hub = notifier.NewWebSocketHub()
		dispatcher.Register(hub)
		log.Printf("websocket alert stream enabled")
	}

	return dispatcher, hub, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := alerting.NewEngine(store, alerting.Config{
		DefaultThreshold: cfg.Alerting.DefaultThreshold,
		AffectedRadiusKm: cfg.Alerting.AffectedRadiusKm,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	dispatcher, hub, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	onOutcome := func(out *alerting.Outcome) {
		if err := dispatcher.Dispatch(ctx, out); err != nil {
			log.Printf("notification dispatch error: %v", err)
		}
	}

	opts := []api.Option{api.WithOutcomeHook(onOutcome)}
	if hub != nil {
		opts = append(opts, api.WithWebSocket(hub))
	}

	srv, err := api.New(&api.Config{
		Address:        cfg.Server.Address,
		RequestTimeout: cfg.Server.RequestTimeout,
		Verbose:        cfg.Verbose,
	}, store, engine, opts...)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	srv.RegisterHealthChecker(health.NewChecker("database", func(ctx context.Context) error {
		return store.DB().PingContext(ctx)
	}))

	log.Printf("starting coral-server %s", config.Version)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Observations.File != "" {
		source, err := scheduler.NewFileSource(cfg.Observations.File)
		if err != nil {
			return fmt.Errorf("observation source: %w", err)
		}
		scanner := alerting.NewScanner(engine, cfg.Alerting.Concurrency)
		var retention time.Duration
		if cfg.Alerting.RetentionDays > 0 {
			retention = time.Duration(cfg.Alerting.RetentionDays) * 24 * time.Hour
		}
		sched := scheduler.New(scheduler.Config{
			Interval:     cfg.Alerting.Interval,
			RetentionAge: retention,
		}, scanner, source, store, onOutcome)

		g.Go(func() error {
			err := sched.Run(gctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	} else {
		log.Printf("no observation file configured, periodic evaluation disabled")
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Observations.File == "" {
		return fmt.Errorf("observations.file must be configured for scan")
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := alerting.NewEngine(store, alerting.Config{
		DefaultThreshold: cfg.Alerting.DefaultThreshold,
		AffectedRadiusKm: cfg.Alerting.AffectedRadiusKm,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	source, err := scheduler.NewFileSource(cfg.Observations.File)
	if err != nil {
		return fmt.Errorf("observation source: %w", err)
	}

	scanner := alerting.NewScanner(engine, cfg.Alerting.Concurrency)
	sched := scheduler.New(scheduler.Config{}, scanner, source, store, nil)

	result, err := sched.RunOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}

	fmt.Printf("evaluated %d areas, %d changes, %d errors\n",
		result.Evaluated, len(result.Outcomes), len(result.Errors))
	for _, out := range result.Outcomes {
		fmt.Printf("  %-18s %s (%d cases, severity %s)\n",
			out.Change, out.Alert.AreaName, out.Alert.BleachingCount, out.Alert.SeverityLevel)
	}
	if result.Aborted() {
		return fmt.Errorf("cycle aborted by storage outage")
	}
	return nil
}
