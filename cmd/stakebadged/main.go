package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stakebadge/cmd/internal/passphrase"
	"stakebadge/config"
	"stakebadge/core"
	"stakebadge/crypto"
	"stakebadge/observability/logging"
	"stakebadge/observability/metrics"
	stakeotel "stakebadge/observability/otel"
	"stakebadge/server"
	"stakebadge/storage"
)

const (
	serviceName     = "stakebadged"
	operatorPassEnv = "STAKEBADGE_OPERATOR_PASS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (.toml, .yaml or .yml)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		slog.Error("stakebadged exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, logCloser, err := logging.SetupWithOptions(serviceName, cfg.Log.Env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := stakeotel.Init(ctx, stakeotel.Config{
		ServiceName: serviceName,
		Environment: cfg.Log.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     stakeotel.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	pass, err := passphrase.NewSource(operatorPassEnv, "operator keystore",
		passphrase.WithFile(cfg.OperatorPassphraseFile)).Get()
	if err != nil {
		return err
	}
	operatorKey, created, err := crypto.LoadOrCreateKeystore(cfg.OperatorKeystorePath, pass)
	if err != nil {
		return fmt.Errorf("operator key: %w", err)
	}
	operator := operatorKey.PubKey().Address()
	if created {
		logger.Info("Generated operator keystore", slog.String("path", cfg.OperatorKeystorePath))
	}

	allocations, err := genesisAllocations(cfg, operator.Bytes())
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db, core.Options{
		AssetSymbol: cfg.AssetSymbol,
		BaseURI:     cfg.BaseURI,
		Params:      cfg.TierParams(),
		Operator:    operator.Bytes(),
		Allocations: allocations,
		Logger:      logger,
		Metrics:     metrics.Staking(),
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	logger.Info("Operator ready",
		slog.String("operator", operator.String()),
		slog.String("vault", crypto.FormatAddress(node.Vault())))

	if cfg.MetricsAddress == "" {
		<-ctx.Done()
		return nil
	}

	httpServer := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           server.New(node, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving queries and metrics", slog.String("address", cfg.MetricsAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if cfg.InMemory {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return storage.NewLevelDB(cfg.DataDir)
}

// genesisAllocations parses the configured allocations, defaulting to the
// full initial supply for the operator.
func genesisAllocations(cfg *config.Config, operator [20]byte) ([]core.Allocation, error) {
	parsed, err := cfg.GenesisAllocations()
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		supply, err := config.ParseAmount(config.DefaultOperatorSupply)
		if err != nil {
			return nil, err
		}
		return []core.Allocation{{Address: operator, Amount: supply}}, nil
	}
	out := make([]core.Allocation, 0, len(parsed))
	for _, alloc := range parsed {
		out = append(out, core.Allocation{Address: alloc.Address, Amount: alloc.Amount})
	}
	return out, nil
}
