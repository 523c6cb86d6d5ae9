// Package main provides the AgriSense server CLI.
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

	"github.com/agrisense/agrisense/internal/advisor"
	"github.com/agrisense/agrisense/internal/anomaly"
	"github.com/agrisense/agrisense/internal/api"
	"github.com/agrisense/agrisense/internal/api/auth"
	"github.com/agrisense/agrisense/internal/api/health"
	"github.com/agrisense/agrisense/internal/ingest"
	"github.com/agrisense/agrisense/internal/metrics"
	"github.com/agrisense/agrisense/internal/models"
	"github.com/agrisense/agrisense/internal/notifier"
	"github.com/agrisense/agrisense/internal/storage"
	"github.com/agrisense/agrisense/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "agrisense-server",
	Short: "AgriSense Server - Farm monitoring backend",
	Long: `AgriSense Server ingests sensor readings from field devices,
detects anomalies, generates recommendations, and serves the
monitoring REST API.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agrisense-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose

	// Get JWT signing secret from environment
	jwtSecret := os.Getenv("AGRISENSE_JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("AGRISENSE_JWT_SECRET environment variable is required")
	}

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize metadata storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Create default admin user on first run
	if err := store.EnsureAdminUser(); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	// Initialize reading storage
	readings := storage.NewClickHouseStorage(&storage.ClickHouseConfig{
		Addresses:     cfg.ClickHouse.Addresses,
		Database:      cfg.ClickHouse.Database,
		Username:      cfg.ClickHouse.Username,
		Password:      cfg.ClickHouse.Password,
		Compression:   true,
		RetentionDays: cfg.ClickHouse.RetentionDays,
	})
	if err := openReadingStorage(readings); err != nil {
		return fmt.Errorf("open reading storage: %w", err)
	}
	defer readings.Close()

	if err := readings.Migrate(); err != nil {
		return fmt.Errorf("migrate reading storage: %w", err)
	}

	log.Printf("reading storage connected at %v", cfg.ClickHouse.Addresses)

	buffer := storage.NewReadingBuffer(readings.Readings(), &storage.ReadingBufferConfig{})
	defer buffer.Close()

	// Anomaly detector
	detector, err := buildDetector(cfg)
	if err != nil {
		return err
	}
	defer detector.Close()

	// Recommendation engine
	adv, err := buildAdvisor(cmd.Context(), cfg, store)
	if err != nil {
		return err
	}

	// Notification channels
	dispatcher, channels, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	processor := ingest.NewProcessor(buffer, detector, nil)

	// API server
	srv, err := api.New(&api.Config{
		Address:          cfg.Server.Address,
		JWTSecret:        []byte(jwtSecret),
		HTTPTLSEnabled:   cfg.Server.TLS.Enabled,
		HTTPTLSCertFile:  cfg.Server.TLS.CertFile,
		HTTPTLSKeyFile:   cfg.Server.TLS.KeyFile,
		AccessTokenTTL:   cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:  cfg.Auth.RefreshTokenTTL,
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		LockoutDuration:  cfg.Auth.LockoutDuration,
		Verbose:          cfg.Verbose,
	}, store, readings.Readings(), processor)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}

	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	srv.RegisterHealthChecker(health.NewClickHouseChecker(readings))

	// Handle shutdown signals
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx)
	})

	// Alerts flow from the detector through the advisor to the
	// notification channels.
	g.Go(func() error {
		runAlertPipeline(ctx, detector.Alerts(), store, adv, dispatcher, channels)
		return nil
	})

	// Expired refresh tokens are purged hourly.
	g.Go(func() error {
		runTokenCleanup(ctx, auth.NewTokenService(store, cfg.Auth.RefreshTokenTTL))
		return nil
	})

	if cfg.MQTT.Enabled {
		broker, err := ingest.NewBroker(&ingest.BrokerConfig{Address: cfg.MQTT.Address}, processor)
		if err != nil {
			return fmt.Errorf("create MQTT broker: %w", err)
		}
		srv.RegisterHealthChecker(health.NewBrokerChecker(broker.Serving))

		g.Go(func() error {
			if err := broker.Serve(); err != nil {
				return fmt.Errorf("MQTT broker: %w", err)
			}
			log.Printf("MQTT broker listening on %s", cfg.MQTT.Address)
			<-ctx.Done()
			return broker.Close()
		})
	}

	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Address)
		g.Go(func() error {
			errCh := make(chan error, 1)
			go func() { errCh <- ms.Start() }()
			select {
			case err := <-errCh:
				return fmt.Errorf("metrics server: %w", err)
			case <-ctx.Done():
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				return ms.Shutdown(shutdownCtx)
			}
		})
	}

	return g.Wait()
}

// openReadingStorage retries the ClickHouse connection so the server
// survives a backend that comes up after it does.
func openReadingStorage(s *storage.ClickHouseStorage) error {
	var err error
	for attempt := 0; attempt < 6; attempt++ {
		if attempt > 0 {
			log.Printf("reading storage not ready, retrying: %v", err)
			time.Sleep(5 * time.Second)
		}
		if err = s.Open(); err == nil {
			return nil
		}
	}
	return err
}

// buildDetector creates the anomaly detector from configuration,
// loading threshold overrides when a file is configured.
func buildDetector(cfg *Config) (*anomaly.Detector, error) {
	opts := anomaly.DefaultDetectorOptions()
	if cfg.Detector.Window > 0 {
		opts.Window = cfg.Detector.Window
	}
	if cfg.Detector.Cooldown > 0 {
		opts.Cooldown = cfg.Detector.Cooldown
	}

	var thresholds anomaly.Thresholds
	if cfg.Detector.ThresholdsFile != "" {
		var err error
		thresholds, err = anomaly.LoadThresholdsFromFile(cfg.Detector.ThresholdsFile)
		if err != nil {
			return nil, fmt.Errorf("load thresholds: %w", err)
		}
		log.Printf("loaded detector thresholds from %s", cfg.Detector.ThresholdsFile)
	}

	return anomaly.NewDetector(thresholds, opts), nil
}

// buildAdvisor creates the recommendation engine, wiring the Gemini
// explanation rewriter when an API key is configured.
func buildAdvisor(ctx context.Context, cfg *Config, store storage.Storage) (*advisor.Advisor, error) {
	var opts []advisor.Option
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		rewriter, err := advisor.NewGeminiRewriter(ctx, apiKey, cfg.Advisor.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("create Gemini rewriter: %w", err)
		}
		opts = append(opts, advisor.WithRewriter(rewriter))
		log.Printf("advisor: Gemini rewriter enabled (model %s)", cfg.Advisor.GeminiModel)
	} else {
		log.Printf("advisor: GEMINI_API_KEY not set, using template explanations")
	}

	return advisor.New(store.Recommendations(), opts...), nil
}

// buildDispatcher creates the notification dispatcher and registers
// the enabled channels. The returned names route alert events.
func buildDispatcher(cfg *Config) (*notifier.Dispatcher, []string, error) {
	dispatcher := notifier.NewDispatcherWithRateLimit(notifier.RateLimitConfig{
		MaxPerWindow: cfg.Notifiers.MaxPerMinute,
		Window:       time.Minute,
		Enabled:      true,
	})

	var channels []string
	if cfg.Notifiers.Slack.Enabled {
		slack, err := notifier.NewSlackNotifier(notifier.SlackConfig{
			WebhookURL: cfg.Notifiers.Slack.WebhookURL,
		})
		if err != nil {
			dispatcher.Close()
			return nil, nil, fmt.Errorf("create slack notifier: %w", err)
		}
		dispatcher.Register(slack)
		channels = append(channels, slack.Name())
	}
	if cfg.Notifiers.Email.Enabled {
		email, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:       cfg.Notifiers.Email.Host,
			Port:       cfg.Notifiers.Email.Port,
			Username:   cfg.Notifiers.Email.Username,
			Password:   cfg.Notifiers.Email.Password,
			From:       cfg.Notifiers.Email.From,
			Recipients: cfg.Notifiers.Email.Recipients,
		})
		if err != nil {
			dispatcher.Close()
			return nil, nil, fmt.Errorf("create email notifier: %w", err)
		}
		dispatcher.Register(email)
		channels = append(channels, email.Name())
	}

	if len(channels) > 0 {
		log.Printf("notifications enabled on: %v", channels)
	}
	return dispatcher, channels, nil
}

// runAlertPipeline consumes detected alerts, persisting each one,
// generating a recommendation, and notifying the configured channels.
func runAlertPipeline(ctx context.Context, alerts <-chan *models.Alert, store storage.Storage, adv *advisor.Advisor, dispatcher *notifier.Dispatcher, channels []string) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-alerts:
			if !ok {
				return
			}
			if err := store.Alerts().Create(ctx, alert); err != nil {
				log.Printf("persist alert for plot %s: %v", alert.PlotID, err)
				continue
			}
			rec, err := adv.Recommend(ctx, alert)
			if err != nil {
				log.Printf("advisor: recommend for alert %s: %v", alert.ID, err)
			}
			if len(channels) == 0 {
				continue
			}
			event := &notifier.Event{
				Alert:          alert,
				Recommendation: rec,
				Channels:       channels,
			}
			if err := dispatcher.Dispatch(ctx, event); err != nil {
				log.Printf("notify: alert %s: %v", alert.ID, err)
			}
		}
	}
}

// runTokenCleanup purges expired refresh tokens periodically.
func runTokenCleanup(ctx context.Context, tokens *auth.TokenService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.CleanupExpiredTokens(ctx)
			if err != nil {
				log.Printf("token cleanup: %v", err)
			} else if n > 0 {
				log.Printf("token cleanup: removed %d expired tokens", n)
			}
		}
	}
}
