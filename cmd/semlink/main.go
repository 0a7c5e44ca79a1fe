// Package main runs a single semlink robot: it loads layered configuration,
// connects to NATS, starts the driver and serves metrics, health and the
// optional event tap until interrupted.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/semlink/config"
	"github.com/c360/semlink/driver"
	"github.com/c360/semlink/envelope"
	"github.com/c360/semlink/errors"
	"github.com/c360/semlink/health"
	"github.com/c360/semlink/metric"
	"github.com/c360/semlink/natsclient"
	"github.com/c360/semlink/pkg/retry"
	"github.com/c360/semlink/tap"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semlink"
)

const connectTimeout = 10 * time.Second

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, logger, shouldExit, err := initializeCLI(args)
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPaths)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config", cfg.String())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, cliCfg, logger)
}

// initializeCLI parses flags and sets up logging
func initializeCLI(args []string) (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return nil, nil, true, err
	}
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}
	if cliCfg.ShowHelp {
		cliCfg.usage()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("Starting semlink",
		"version", Version,
		"build_time", BuildTime,
		"config_layers", cliCfg.ConfigPaths)

	return cliCfg, logger, false, nil
}

func loadConfig(paths []string) (*config.Config, error) {
	loader := config.NewLoader()
	for _, p := range paths {
		loader.AddLayer(p)
	}
	return loader.Load()
}

// serve runs the robot until ctx is cancelled, then halts it within the
// shutdown timeout.
func serve(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) error {
	registry := metric.NewMetricsRegistry()

	vocab, err := cfg.Vocabulary(config.ReadTreeFile)
	if err != nil {
		return fmt.Errorf("build vocabulary: %w", err)
	}

	clientOpts := append(cfg.ClientOptions(),
		natsclient.WithMetrics(registry),
		natsclient.WithLogger(natsclient.NewSlogLogger(logger.With("component", "nats"))),
	)
	client, err := natsclient.NewClient(strings.Join(cfg.URLs(), ","), clientOpts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	if err := connectToNATS(ctx, client, logger); err != nil {
		_ = client.Close(context.Background())
		return err
	}

	d, err := driver.New(cfg.DriverConfig(), client, vocab,
		driver.WithLogger(logger),
		driver.WithMetrics(registry),
		driver.WithHandler(logEvents(logger)),
	)
	if err != nil {
		_ = client.Close(context.Background())
		return fmt.Errorf("create driver: %w", err)
	}
	if cliCfg.Echo {
		d.OnEvent(echoCommands(d, logger))
	}

	monitor := health.NewMonitor()
	monitor.Register("driver", d.Status)
	monitor.Register("nats", natsProbe(client))

	var tp *tap.Server
	if cfg.Tap.Enabled {
		tp = tap.New(tap.Config{
			Addr:         cfg.Tap.Addr,
			Path:         cfg.Tap.Path,
			MaxClients:   cfg.Tap.MaxClients,
			PingInterval: cfg.Tap.PingInterval.Std(),
		}, tap.WithLogger(logger), tap.WithMetrics(registry), tap.WithRobot(cfg.Robot.Name))
		d.OnEvent(tp.HandleEvent)
	}

	if err := d.Start(ctx); err != nil {
		_ = client.Close(context.Background())
		return fmt.Errorf("start driver: %w", err)
	}
	logger.Info("Robot started", "robot", cfg.Robot.Name, "topics", d.Topics())

	g, gctx := errgroup.WithContext(ctx)

	if tp != nil {
		g.Go(func() error { return tp.Run(gctx) })
	}
	if cfg.Metrics.Enabled {
		srv := metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, registry,
			metric.WithHealthHandler(monitor.Handler(appName)))
		g.Go(func() error { return srv.Run(gctx) })
		logger.Info("Metrics listening", "addr", srv.Address(), "path", cfg.Metrics.Path)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "timeout", cliCfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		if err := d.Halt(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("Shutdown complete")
		return nil
	})

	return g.Wait()
}

// connectToNATS retries transient connect failures, then waits for the
// connection to be ready.
func connectToNATS(ctx context.Context, client *natsclient.Client, logger *slog.Logger) error {
	logger.Info("Connecting to NATS", "url", client.URL())

	policy := errors.DefaultRetryConfig().ToRetryConfig()
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("NATS connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}
	if err := retry.Do(ctx, policy, func() error { return client.Connect(ctx) }); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nil
}

type connectionStatus interface {
	Status() natsclient.ConnectionStatus
}

func natsProbe(client connectionStatus) health.Probe {
	return func() health.Status {
		status := client.Status()
		switch status {
		case natsclient.StatusConnected:
			return health.NewHealthy("nats", "connected")
		case natsclient.StatusConnecting, natsclient.StatusReconnecting:
			return health.NewDegraded("nats", status.String())
		default:
			return health.NewUnhealthy("nats", status.String())
		}
	}
}

// logEvents logs every driver event. Noise and ignored chatter go to debug.
func logEvents(logger *slog.Logger) driver.Handler {
	return func(ctx context.Context, ev driver.Event) {
		attrs := []any{"kind", ev.Kind.String(), "topic", ev.Topic}
		if ev.Envelope != nil {
			attrs = append(attrs, "id", ev.Envelope.ID, "from", ev.Envelope.Sender.Name)
		}

		switch ev.Kind {
		case driver.KindCommand:
			logger.InfoContext(ctx, "Command", append(attrs, "command", ev.Match.Command, "path", ev.Match.Path)...)
		case driver.KindPrivate, driver.KindGlobal:
			logger.InfoContext(ctx, "Message", append(attrs, "payload", ev.Payload.String())...)
		default:
			logger.DebugContext(ctx, "Message", attrs...)
		}
	}
}

type replier interface {
	Reply(ctx context.Context, source *envelope.Envelope, payload any) (*envelope.Envelope, error)
}

// echoCommands answers each recognised command with the command name
func echoCommands(r replier, logger *slog.Logger) driver.Handler {
	return func(ctx context.Context, ev driver.Event) {
		if ev.Kind != driver.KindCommand || ev.Match == nil {
			return
		}
		if !ev.Envelope.Replyable() {
			return
		}
		if _, err := r.Reply(ctx, ev.Envelope, ev.Match.Command); err != nil {
			logger.WarnContext(ctx, "Echo reply failed", "id", ev.Envelope.ID, "error", err)
		}
	}
}
