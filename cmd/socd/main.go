// socd - SOC workflow daemon
//
// Runs the background monitor over the engagement, certification and
// incident store and serves health and metrics endpoints:
//
//	socd -env /etc/blackwolf/socd.env
//	socd -listen :9090 -verbose
//
// Configuration comes from defaults, an optional .env file, and the
// SOC_* process environment (see pkg/config).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/blackwolfsec/soc-sdk/pkg/activity"
	"github.com/blackwolfsec/soc-sdk/pkg/config"
	"github.com/blackwolfsec/soc-sdk/pkg/health"
	"github.com/blackwolfsec/soc-sdk/pkg/metrics"
	"github.com/blackwolfsec/soc-sdk/pkg/monitor"
	"github.com/blackwolfsec/soc-sdk/pkg/store"
)

const (
	appName    = "socd"
	appVersion = "1.0.0"
)

func main() {
	var (
		envFile     = flag.String("env", "", "Path to .env configuration file")
		listenAddr  = flag.String("listen", "", "HTTP listen address (overrides SOC_LISTEN_ADDR)")
		verbose     = flag.Bool("verbose", false, "Enable verbose output")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	logger, err := activity.NewLogger(&activity.LoggerConfig{
		LogFile: cfg.ActivityLogPath,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open activity log: %v\n", err)
		os.Exit(1)
	}
	logger.Start()

	collector := metrics.NewPrometheusCollector(&metrics.PrometheusConfig{
		RegisterDefaultMetrics: true,
	})
	metrics.SetDefaultCollector(collector)

	mon := monitor.New(st, &monitor.Config{
		SweepInterval: cfg.SweepInterval,
		CertPolicy:    cfg.CertPolicy(),
		Metrics:       collector,
		Activity:      logger,
		Verbose:       cfg.Verbose,
	})
	if err := mon.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start monitor: %v\n", err)
		os.Exit(1)
	}

	healthHandler := health.NewHandler(health.WithVersion(appVersion))
	healthHandler.Register("store", &health.StoreCheck{PingFunc: st.Ping})
	healthHandler.Register("monitor", &health.MonitorCheck{
		LastSweep: func() time.Time { return mon.Status().LastSweep },
		MaxAge:    3 * cfg.SweepInterval,
	})
	healthHandler.Register("disk", &health.DiskCheck{
		Path:           filepath.Dir(cfg.DatabasePath),
		MinFreePercent: 5,
	})
	healthHandler.Register("system_memory", &health.SystemMemoryCheck{})
	healthHandler.SetReady(true)

	mux := http.NewServeMux()
	healthHandler.RegisterRoutes(mux)
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
		}
	}()

	logger.Info(activity.EventServiceStart, "daemon started", map[string]interface{}{
		"version": appVersion,
		"listen":  cfg.ListenAddr,
	})

	fmt.Printf("\n%s started\n", appName)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Listen: %s\n", cfg.ListenAddr)
	fmt.Printf("  Database: %s\n", cfg.DatabasePath)
	fmt.Printf("  Activity log: %s\n", cfg.ActivityLogPath)
	fmt.Printf("  Sweep interval: %s\n", cfg.SweepInterval)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("\nPress Ctrl+C to stop.")

	select {
	case err := <-srvErr:
		fmt.Fprintf(os.Stderr, "HTTP server failed: %v\n", err)
		cancel()
	case <-ctx.Done():
	}

	healthHandler.SetReady(false)
	mon.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "HTTP shutdown: %v\n", err)
	}

	logger.Info(activity.EventServiceStop, "daemon stopped", nil)
	if err := logger.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Activity log close: %v\n", err)
	}

	fmt.Println("Stopped.")
}
