package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhijithsuren/dga-lab-v2/internal/alerting"
	"github.com/abhijithsuren/dga-lab-v2/internal/classifier"
	"github.com/abhijithsuren/dga-lab-v2/internal/config"
	"github.com/abhijithsuren/dga-lab-v2/internal/database"
	"github.com/abhijithsuren/dga-lab-v2/internal/detector"
	"github.com/abhijithsuren/dga-lab-v2/internal/dga"
	"github.com/abhijithsuren/dga-lab-v2/internal/endpoint"
	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
	"github.com/abhijithsuren/dga-lab-v2/internal/metrics"
	"github.com/abhijithsuren/dga-lab-v2/internal/verdict"
	"github.com/abhijithsuren/dga-lab-v2/internal/victim"
)

const version = "0.2.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "dgalab",
		Short: "DGA Lab - malware traffic simulation and detection",
		Long: `dgalab runs the three components of the DGA simulation lab:
the detector service, the C2 endpoint simulator, and the victim
traffic generator. Each component runs as its own process.`,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "detector",
			Short: "Run the detection service",
			RunE:  runDetector,
		},
		&cobra.Command{
			Use:   "endpoint",
			Short: "Run the C2 endpoint simulator",
			RunE:  runEndpoint,
		},
		&cobra.Command{
			Use:   "victim",
			Short: "Run the victim traffic generator",
			RunE:  runVictim,
		},
		&cobra.Command{
			Use:   "generate",
			Short: "Print the current DGA domain batch and exit",
			RunE:  runGenerate,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("dgalab v%s\n", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(component string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := logging.Init(component, cfg.Logging.LogDir, &cfg.Logging.Rotation, cfg.Logging.LogLevel, cfg.Logging.Debug); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	logging.Info("dgalab %s v%s starting", component, version)
	return cfg, nil
}

func runDetector(cmd *cobra.Command, args []string) error {
	cfg, err := setup("detector")
	if err != nil {
		return err
	}
	defer logging.Close()

	db, err := database.InitializeDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	thresholds := classifier.FallbackThresholds{
		Entropy:    cfg.Detector.Fallback.EntropyThreshold,
		DigitRatio: cfg.Detector.Fallback.DigitRatioThreshold,
	}
	clf, err := classifier.Load(cfg.Detector.DatasetPath, thresholds)
	if err != nil {
		if !errors.Is(err, classifier.ErrModelUnavailable) {
			return fmt.Errorf("loading classifier: %w", err)
		}
		logging.Warn("model dataset unavailable, running on fallback rules: %v", err)
	}

	collector := metrics.NewCollector()
	svc := verdict.NewService(clf, db, collector, cfg.Detector.MaxRecent)
	if cfg.Detector.Alerting.Enabled {
		svc.SetAlerter(alerting.NewNotifier(cfg.Detector.Alerting))
	}

	var exporter *metrics.Exporter
	if cfg.Detector.Metrics.Enabled {
		exporter = metrics.NewExporter(collector, clf.Loaded())
	}

	server := detector.NewServer(cfg.Detector.ListenAddr, svc, exporter, cfg.Detector.Metrics)
	return server.Start()
}

func runEndpoint(cmd *cobra.Command, args []string) error {
	cfg, err := setup("endpoint")
	if err != nil {
		return err
	}
	defer logging.Close()

	profile, err := dga.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	sim := endpoint.NewSimulator(dga.NewGenerator(profile))

	ctx, cancel := signalContext()
	defer cancel()
	go sim.Run(ctx)

	server := endpoint.NewServer(cfg.Endpoint.ListenAddr, sim)
	return server.Start()
}

func runVictim(cmd *cobra.Command, args []string) error {
	cfg, err := setup("victim")
	if err != nil {
		return err
	}
	defer logging.Close()

	profile, err := dga.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	timeout := time.Duration(cfg.Victim.TimeoutSeconds) * time.Second
	client := victim.NewClient(cfg.Victim.DetectorURL, timeout)
	runner := victim.NewRunner(dga.NewGenerator(profile), client, cfg.Victim.EndpointURL, cfg.Victim.DefaultPolicy, timeout)

	ctx, cancel := signalContext()
	defer cancel()
	runner.Run(ctx)

	logging.Info("victim shutting down")
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	profile, err := dga.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	for _, domain := range dga.NewGenerator(profile).NextBatch() {
		fmt.Println(domain)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
