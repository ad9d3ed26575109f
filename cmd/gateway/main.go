// Package main is the entry point for the webhook forwarding gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avhookgw/internal/config"
	"github.com/vyrodovalexey/avhookgw/internal/gateway"
	"github.com/vyrodovalexey/avhookgw/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	cfg := loadConfig(flags)

	logger := initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting avhookgw",
		observability.String("version", version),
		observability.String("routes_file", cfg.RoutesFile),
		observability.String("history_file", cfg.HistoryFile),
		observability.Int("history_capacity", cfg.HistoryCapacity),
	)

	gw, err := gateway.New(cfg, logger, version)
	if err != nil {
		fatalWithSync(logger, "failed to build gateway", observability.Error(err))
		return
	}

	runGateway(gw, cfg, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("HOOKGW_CONFIG_PATH", ""),
		"Path to configuration file (optional)")
	logLevel := flag.String("log-level", getEnvOrDefault("HOOKGW_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("HOOKGW_LOG_FORMAT", ""),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("avhookgw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// loadConfig loads the configuration file (when given), applies
// environment overrides, and validates the result.
func loadConfig(flags cliFlags) *config.Config {
	cfg := config.DefaultConfig()

	if flags.configPath != "" {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}

	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// applyEnvOverrides applies environment variable overrides on top of
// the loaded configuration.
func applyEnvOverrides(cfg *config.Config) {
	cfg.Port = getEnvInt("HOOKGW_PORT", cfg.Port)
	cfg.AdminToken = getEnvOrDefault("HOOKGW_ADMIN_TOKEN", cfg.AdminToken)
	cfg.RoutesFile = getEnvOrDefault("HOOKGW_ROUTES_FILE", cfg.RoutesFile)
	cfg.HistoryFile = getEnvOrDefault("HOOKGW_HISTORY_FILE", cfg.HistoryFile)
	cfg.HistoryCapacity = getEnvInt("HOOKGW_HISTORY_CAPACITY", cfg.HistoryCapacity)
	cfg.RedisAddress = getEnvOrDefault("HOOKGW_REDIS_ADDRESS", cfg.RedisAddress)

	if hosts := getEnvList("HOOKGW_ALLOWED_HOSTS"); hosts != nil {
		cfg.AllowedHosts = hosts
	}
}

// initLogger initializes the logger.
func initLogger(cfg *config.Config) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// runGateway runs the gateway and handles shutdown.
func runGateway(gw *gateway.Gateway, cfg *config.Config, logger observability.Logger) {
	ctx := context.Background()

	if err := gw.Start(ctx); err != nil {
		fatalWithSync(logger, "failed to start gateway", observability.Error(err))
		return
	}

	waitForShutdown(gw, cfg, logger)
}

// waitForShutdown waits for a shutdown signal and performs graceful
// shutdown.
func waitForShutdown(gw *gateway.Gateway, cfg *config.Config, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}

	logger.Info("gateway stopped")
}

// fatalWithSync logs a fatal-level message, flushes, and exits.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	os.Exit(1)
}
