// Package main is the entry point for the Dapp Marketplace client.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/dapp-marketplace/business/marketplace"
	marketApp "github.com/fd1az/dapp-marketplace/business/marketplace/app"
	marketDI "github.com/fd1az/dapp-marketplace/business/marketplace/di"
	"github.com/fd1az/dapp-marketplace/business/marketplace/infra"
	"github.com/fd1az/dapp-marketplace/business/wallet"
	walletDI "github.com/fd1az/dapp-marketplace/business/wallet/di"
	"github.com/fd1az/dapp-marketplace/business/wallet/infra/console"
	"github.com/fd1az/dapp-marketplace/internal/apm"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/config"
	"github.com/fd1az/dapp-marketplace/internal/health"
	"github.com/fd1az/dapp-marketplace/internal/logger"
	"github.com/fd1az/dapp-marketplace/internal/metrics"
	"github.com/fd1az/dapp-marketplace/internal/monolith"
	"github.com/fd1az/dapp-marketplace/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// options are the command line settings.
type options struct {
	configPath  string
	tuiMode     bool
	createName  string
	createPrice string
	buyID       uint64
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	createName := flag.String("create-name", "", "CLI: list a product with this name, then exit")
	createPrice := flag.String("create-price", "", "CLI: price in ether for -create-name")
	buyID := flag.Uint64("buy", 0, "CLI: purchase the product with this id, then exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dapp-marketplace %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	opts := options{
		configPath:  *configPath,
		tuiMode:     !*cliMode, // TUI is the default
		createName:  *createName,
		createPrice: *createPrice,
		buyID:       *buyID,
	}
	if opts.createName != "" || opts.buyID != 0 {
		opts.tuiMode = false
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !opts.tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.TUIMode = opts.tuiMode

	// Setup logger (only log to stderr in CLI mode)
	var log *logger.Logger
	if opts.tuiMode {
		log = logger.New(io.Discard, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, logger.TraceIDFromContext)
	} else {
		log = logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, logger.TraceIDFromContext)
		log.Info(ctx, "starting dapp marketplace",
			"version", version,
			"environment", cfg.App.Environment,
		)
	}
	defer log.Sync()

	stopTelemetry := setupTelemetry(ctx, cfg, log)
	defer stopTelemetry()

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(cfg.Health.Port, version, log)
		if err := healthServer.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			log.Info(ctx, "health server started", "port", cfg.Health.Port)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			healthServer.Stop(shutdownCtx)
		}()
	}

	mono := monolith.New(cfg, log)
	defer mono.Close()

	// Define modules in dependency order
	walletModule := &wallet.Module{}           // Must be first - provides the gateway
	marketplaceModule := &marketplace.Module{} // Depends on wallet

	if err := mono.RegisterModules(walletModule, marketplaceModule); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	start := func(progress func(step, status string, err error)) error {
		progress("config", "done", nil)

		progress("wallet", "connecting", nil)
		if err := mono.StartModules(ctx, walletModule); err != nil {
			progress("wallet", "failed", err)
			return fmt.Errorf("failed to start wallet module: %w", err)
		}
		progress("wallet", "done", nil)

		progress("marketplace", "connecting", nil)
		if err := mono.StartModules(ctx, marketplaceModule); err != nil {
			progress("marketplace", "failed", err)
			return fmt.Errorf("failed to start marketplace module: %w", err)
		}
		progress("marketplace", "done", nil)

		if healthServer != nil {
			registerChecks(healthServer, mono)
		}
		return nil
	}

	if opts.tuiMode {
		return runTUI(ctx, mono, start)
	}

	if err := start(func(step, status string, err error) {
		if err == nil {
			log.Debug(ctx, "startup", "step", step, "status", status)
		}
	}); err != nil {
		return err
	}
	return runCLI(ctx, mono, opts, log)
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	traceProvider := apm.NewTraceProvider(apm.WithProvider(
		apm.ParseProvider(cfg.Telemetry.Provider),
		apm.ExporterConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Headers:     cfg.Telemetry.OTLPHeaders,
		},
		log,
	))
	log.Info(ctx, "tracing initialized", "provider", cfg.Telemetry.Provider)

	metricOpts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{
			Provider: metrics.PrometheusProvider,
		}),
	}
	// Metrics follow traces to an OTLP gRPC collector.
	if apm.ParseProvider(cfg.Telemetry.Provider) == apm.OTLPGRPCProvider && cfg.Telemetry.OTLPEndpoint != "" {
		headers, err := apm.ParseHeaders(cfg.Telemetry.OTLPHeaders)
		if err != nil {
			log.Warn(ctx, "ignoring otlp headers", "error", err)
		}
		metricOpts = append(metricOpts, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(
			cfg.Telemetry.OTLPEndpoint, headers, strings.HasPrefix(cfg.Telemetry.OTLPEndpoint, "http://"),
		)))
	}

	meterProvider, err := metrics.NewMetricProvider(metricOpts...)
	if err != nil {
		log.Warn(ctx, "metrics unavailable", "error", err)
	} else {
		go metrics.ServePrometheusMetrics(ctx, log, metrics.WithPort(cfg.Telemetry.PrometheusPort))
		log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)
	}

	return func() {
		if err := traceProvider.Stop(); err != nil {
			log.Warn(context.Background(), "failed to stop trace provider", "error", err)
		}
		if meterProvider != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			meterProvider.Shutdown(shutdownCtx)
		}
	}
}

func registerChecks(srv *health.Server, mono monolith.Monolith) {
	gateway := walletDI.GetGateway(mono.Services())
	session := marketDI.GetSession(mono.Services())

	srv.RegisterCheck("rpc", func(ctx context.Context) (bool, string) {
		id, err := gateway.NetworkID(ctx)
		if err != nil {
			return false, err.Error()
		}
		return true, id.Name()
	})
	srv.RegisterCheck("session", func(ctx context.Context) (bool, string) {
		st := session.State()
		if st.Connected() && st.Binding == nil && !st.Loading {
			return false, "connected to a network without a marketplace deployment"
		}
		return true, string(st.Connection.Status)
	})
}

// runSession consumes network changes until ctx is done. The returned
// channel is closed once the session has stopped.
func runSession(ctx context.Context, session *marketApp.Session, log logger.LoggerInterface) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := session.Run(ctx); err != nil {
			log.Error(ctx, "network watch stopped", "error", err)
		}
	}()
	return done
}

func runCLI(ctx context.Context, mono monolith.Monolith, opts options, log *logger.Logger) error {
	cfg := mono.Config()
	services := mono.Services()

	if !cfg.Wallet.AutoApprove {
		walletDI.GetApprover(services).Set(console.NewApprover(os.Stdin, os.Stderr))
	}

	session := marketDI.GetSession(services)
	controller := marketDI.GetController(services)

	reporter := infra.NewConsoleReporter(os.Stdout)
	if err := reporter.Start(ctx); err != nil {
		return err
	}
	defer reporter.Stop()
	unsubscribe := session.Subscribe(reporter.Report)
	defer unsubscribe()

	sessionCtx, stopSession := context.WithCancel(ctx)
	done := runSession(sessionCtx, session, log)
	defer func() {
		stopSession()
		<-done
	}()

	oneShot := opts.createName != "" || opts.buyID != 0

	log.Info(ctx, "all modules started, connecting wallet")
	if err := controller.Connect(ctx); err != nil {
		if oneShot || !awaitsNetworkChange(err) {
			return fmt.Errorf("connect: %w", err)
		}
		log.Warn(ctx, "connected without a listing, waiting for a network change", "error", err)
	}

	if opts.createName != "" {
		if _, err := controller.CreateProduct(ctx, opts.createName, opts.createPrice); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
	}
	if opts.buyID != 0 {
		product, ok := session.State().Product(opts.buyID)
		if !ok {
			return fmt.Errorf("product %d is not listed", opts.buyID)
		}
		if _, err := controller.BuyProduct(ctx, product.ID, product.Price); err != nil {
			return fmt.Errorf("buy product: %w", err)
		}
	}
	if oneShot {
		return nil
	}

	// Wait for shutdown
	<-ctx.Done()
	log.Info(ctx, "shutting down")
	return nil
}

// awaitsNetworkChange reports whether a connect error leaves the account
// connected and can be cleared by switching to a supported network.
func awaitsNetworkChange(err error) bool {
	return apperror.HasCode(err, apperror.CodeUnsupportedNetwork) ||
		apperror.HasCode(err, apperror.CodeRepositoryReadError)
}

func runTUI(ctx context.Context, mono monolith.Monolith, start func(progress func(step, status string, err error)) error) error {
	// Quitting the TUI stops the session before modules close.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	progress := func(step, status string, err error) {
		msg := ui.StartupMsg{Step: step, Status: status}
		if err != nil {
			msg.Message = ui.ErrorText(err)
		}
		ui.Send(msg)
	}

	// Run module startup in background (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		// Wait for welcome screen to complete (StartModulesMsg signal)
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := start(progress); err != nil {
			errCh <- err
			return
		}

		services := mono.Services()
		if !mono.Config().Wallet.AutoApprove {
			walletDI.GetApprover(services).Set(ui.NewApprover())
		}

		session := marketDI.GetSession(services)
		reporter := infra.NewTUIReporter()
		unsubscribe := session.Subscribe(reporter.Report)
		defer unsubscribe()

		done := runSession(ctx, session, mono.Logger())

		ui.Send(ui.ReadyMsg{Dispatcher: marketDI.GetController(services)})
		reporter.Report(session.State())

		<-ctx.Done()
		<-done
		errCh <- nil
	}()

	// Run TUI (blocking) - shows immediately with welcome screen
	if err := ui.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Check for startup errors
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
