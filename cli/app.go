package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/billbatista/obra-balance/balance"
	"github.com/billbatista/obra-balance/config"
	"github.com/billbatista/obra-balance/docstore"
	"github.com/billbatista/obra-balance/eventlogger"
	"github.com/billbatista/obra-balance/ledger"
	"github.com/billbatista/obra-balance/transactions"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// store is what both backends provide.
type store interface {
	balance.Store
	transactions.Store
	CreateProject(ctx context.Context, project ledger.Project) error
}

// app holds everything a command needs, wired from the configuration.
type app struct {
	cfg      *config.Config
	store    store
	engine   *balance.Engine
	service  *transactions.Service
	worker   *eventlogger.Worker
	registry *prometheus.Registry
	closers  []func() error
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	// DEBUG=true in the environment works like --debug
	if cfg.Debug && !opts.debug {
		setupLogging(true, opts.json)
	}
	cfg.Debug = cfg.Debug || opts.debug
	return cfg, nil
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}

	var events eventlogger.EventLogger
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database connection: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}

		repo := ledger.NewRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			a.close()
			return nil, err
		}
		a.store = repo
		events = eventlogger.NewSqlEventLogger(db)
		slog.Debug("using postgres store")

	case config.DriverBolt:
		st, err := docstore.New(cfg.Store.BoltPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)

		boltEvents, err := eventlogger.NewBoltEventLogger(st.DB())
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = st
		events = boltEvents
		slog.Debug("using bolt store", "path", cfg.Store.BoltPath)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	a.worker = eventlogger.NewWorker(events, cfg.Events.BufferSize)
	a.worker.Start()

	a.registry.MustRegister(collectors.NewGoCollector())
	a.engine = balance.NewEngine(a.store,
		balance.WithRecorder(a.worker),
		balance.WithMetrics(balance.NewMetrics(a.registry)),
		balance.WithDriftTolerance(cfg.Balance.DriftTolerance),
	)
	a.service = transactions.NewService(a.store, a.engine,
		transactions.WithRecorder(a.worker),
		transactions.WithCurrencyPlaces(cfg.Balance.CurrencyPlaces),
	)

	return a, nil
}

// close drains pending events before the stores they are written to close.
func (a *app) close() error {
	if a.worker != nil {
		a.worker.Shutdown()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withApp loads the configuration, opens the app for the duration of fn and
// closes it afterwards.
func withApp(ctx context.Context, opts *rootOptions, fn func(a *app) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	return fn(a)
}
