// Command drivebox serves per-user virtual folders over an S3-compatible
// object store.
//
// Run with:
//
//	drivebox -config drivebox.yaml
//
// Every setting can be overridden from the environment, for example
// DRIVEBOX_STORAGE_ENDPOINT=minio:9000 or DRIVEBOX_ACCOUNTS_DRIVER=postgres.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/koustreak/drivebox/internal/account"
	"github.com/koustreak/drivebox/internal/account/mysql"
	"github.com/koustreak/drivebox/internal/account/postgres"
	"github.com/koustreak/drivebox/internal/config"
	"github.com/koustreak/drivebox/internal/download"
	"github.com/koustreak/drivebox/internal/filestore"
	"github.com/koustreak/drivebox/internal/filestore/memory"
	"github.com/koustreak/drivebox/internal/filestore/minio"
	"github.com/koustreak/drivebox/internal/filestore/s3"
	"github.com/koustreak/drivebox/internal/logger"
	"github.com/koustreak/drivebox/internal/metrics"
	"github.com/koustreak/drivebox/internal/server"
	"github.com/koustreak/drivebox/internal/storage"
	"github.com/koustreak/drivebox/internal/vfs"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drivebox: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(&cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.FatalWith("drivebox stopped", err, nil)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// -----------------------------------------------------------------------
	// 1. Object store
	// -----------------------------------------------------------------------
	store, err := openStore(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureBucket(ctx, cfg.Storage.Bucket); err != nil {
		return err
	}
	log.InfoWith("object store ready", logger.Fields{
		"provider": string(cfg.Storage.Provider),
		"bucket":   cfg.Storage.Bucket,
	})

	// -----------------------------------------------------------------------
	// 2. Account directory
	// -----------------------------------------------------------------------
	accounts, err := openAccounts(ctx, &cfg.Accounts)
	if err != nil {
		return err
	}
	defer accounts.Close()
	log.InfoWith("account directory ready", logger.Fields{"driver": string(cfg.Accounts.Driver)})

	// -----------------------------------------------------------------------
	// 3. Core services
	// -----------------------------------------------------------------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	adapter := storage.New(store, cfg.Storage.Bucket, log, m)
	engine := vfs.New(adapter, vfs.Config{
		MaxNameLength:   cfg.Limits.MaxNameLength,
		CopyConcurrency: cfg.Limits.CopyConcurrency,
	}, log, m)
	downloads := download.New(engine, adapter, cfg.Download, log, m)

	// -----------------------------------------------------------------------
	// 4. HTTP
	// -----------------------------------------------------------------------
	srv := server.New(server.Config{
		UserHeader:      cfg.Server.UserHeader,
		MaxUploadMemory: cfg.Server.MaxUploadMemory,
	}, server.Deps{
		Engine:   engine,
		Download: downloads,
		Store:    adapter,
		Accounts: accounts,
		Metrics:  m,
		Gatherer: reg,
		Log:      log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.InfoWith("server listening", logger.Fields{"addr": cfg.Server.Addr})
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openStore and openAccounts never hand back a typed nil on error.
func openStore(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	switch cfg.Provider {
	case filestore.ProviderMinIO:
		d, err := minio.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case filestore.ProviderS3:
		d, err := s3.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case filestore.ProviderMemory:
		return memory.New(cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func openAccounts(ctx context.Context, cfg *account.Config) (account.Directory, error) {
	switch cfg.Driver {
	case account.DriverStatic:
		return account.NewStatic(cfg.Users), nil
	case account.DriverPostgres:
		d, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case account.DriverMySQL:
		d, err := mysql.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown account driver %q", cfg.Driver)
	}
}
