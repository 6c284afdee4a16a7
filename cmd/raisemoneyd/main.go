package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"raisemoney/config"
	"raisemoney/core"
	"raisemoney/core/clock"
	"raisemoney/indexer"
	"raisemoney/native/token"
	"raisemoney/observability/logging"
	telemetry "raisemoney/observability/otel"
	"raisemoney/rpc"
	"raisemoney/storage"
)

const (
	envName         = "RAISE_ENV"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (TOML or YAML)")
	envFlag := flag.String("env", strings.TrimSpace(os.Getenv(envName)), "Deployment environment label attached to logs and telemetry")
	flag.Parse()

	if err := run(*configFile, *envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "raisemoneyd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, env string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup("raisemoneyd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "raisemoneyd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open %s storage in %s: %w", cfg.Storage, cfg.DataDir, err)
	}
	node, err := buildNode(cfg, db, logger)
	if err != nil {
		db.Close()
		return err
	}
	defer node.Close()

	var index *indexer.Indexer
	if cfg.Indexer.Enabled {
		gormDB, err := indexer.Open(cfg.IndexerDSN())
		if err != nil {
			return err
		}
		index, err = indexer.New(gormDB, logger)
		if err != nil {
			return err
		}
		defer index.Close()
		go func() {
			if err := index.Run(ctx, node.Events(), cfg.Indexer.Buffer); err != nil {
				logger.Error("indexer stopped", slog.Any("error", err))
			}
		}()
	}

	server := rpc.NewServer(node, serverConfig(cfg, index, logger))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(cfg.RPCAddress)
	}()

	logger.Info("raisemoney node started",
		slog.String("rpc", cfg.RPCAddress),
		slog.String("storage", cfg.Storage),
		slog.String("custody", node.Custody().String()),
		slog.Bool("manualClock", node.ManualClock()),
		slog.Bool("indexer", index != nil))

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("rpc shutdown failed", slog.Any("error", err))
	}
	return <-serveErr
}

// buildNode translates the configuration into node options and runs genesis.
func buildNode(cfg *config.Config, db storage.Database, logger *slog.Logger) (*core.Node, error) {
	supply, err := cfg.InitialSupplyAmount()
	if err != nil {
		return nil, fmt.Errorf("initial supply: %w", err)
	}
	treasury, err := cfg.TreasuryPrincipal()
	if err != nil {
		return nil, fmt.Errorf("treasury: %w", err)
	}
	custody, err := cfg.CustodyPrincipal()
	if err != nil {
		return nil, fmt.Errorf("custody: %w", err)
	}
	var clk clock.Clock = clock.System{}
	if cfg.Dev.ManualClock {
		start := cfg.Dev.StartTime
		if start <= 0 {
			start = time.Now().Unix()
		}
		// NewNode resumes from the persisted reading when it is later.
		clk = clock.NewManual(start)
	}
	node, err := core.NewNode(db, core.Options{
		Token: token.Metadata{
			Symbol:   cfg.Token.Symbol,
			Name:     cfg.Token.Name,
			Decimals: cfg.Token.Decimals,
		},
		InitialSupply: supply,
		Treasury:      treasury,
		Custody:       custody,
		Clock:         clk,
		AllowMint:     cfg.Dev.AllowMint,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}
	return node, nil
}

func serverConfig(cfg *config.Config, index *indexer.Indexer, logger *slog.Logger) rpc.ServerConfig {
	out := rpc.ServerConfig{
		HMACSecret:          cfg.Auth.HMACSecret,
		Issuer:              cfg.Auth.Issuer,
		Audience:            cfg.Auth.Audience,
		AllowAnonymousReads: cfg.Auth.AllowAnonymousReads,
		RequestsPerMinute:   cfg.RateLimit.RequestsPerMinute,
		Burst:               cfg.RateLimit.Burst,
		Logger:              logger,
	}
	// A typed nil would make the interface non-nil.
	if index != nil {
		out.Index = index
	}
	return out
}
