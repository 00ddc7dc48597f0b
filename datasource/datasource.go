// Package datasource provides named PostgreSQL connection pools that act as
// model owners. A DataSource registers models through a registry.Manager,
// which associates them with the datasource weakly: closing (or leaking) the
// datasource releases its model bindings without any registry bookkeeping in
// caller code.
package datasource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/modelreg/registry"
	"github.com/Konsultn-Engineering/modelreg/view"
)

// DataSource is a named PostgreSQL connection pool. The pool is established
// lazily by Open; model registries attach themselves through the
// RegistryBacklink hooks when the first entry is bound to the datasource.
type DataSource struct {
	name   string
	cfg    Config
	logger *zap.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool

	registry atomic.Pointer[registry.Manager]
}

// Options carries optional collaborators for a DataSource.
type Options struct {
	Logger *zap.Logger
}

// New validates cfg and returns an unopened DataSource.
func New(name string, cfg Config, opts Options) (*DataSource, error) {
	if name == "" {
		return nil, fmt.Errorf("datasource name is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("datasource %s: %w", name, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DataSource{name: name, cfg: cfg, logger: logger}, nil
}

// Name returns the configured datasource name.
func (ds *DataSource) Name() string { return ds.name }

// DSN renders the connection string for this datasource.
func (ds *DataSource) DSN() string { return ds.cfg.DSN() }

// Open establishes the connection pool. It is a no-op when the pool already
// exists. When cfg.Retry is set the connection is retried with exponential
// backoff.
func (ds *DataSource) Open(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.pool != nil {
		return nil
	}

	if ds.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ds.cfg.ConnectTimeout)
		defer cancel()
	}

	if ds.cfg.Retry != nil {
		if err := retryConnect(ctx, ds.cfg.Retry, ds.connect); err != nil {
			return fmt.Errorf("datasource %s: connect after %d retries: %w",
				ds.name, ds.cfg.Retry.MaxRetries, err)
		}
		return nil
	}

	if err := ds.connect(ctx); err != nil {
		return fmt.Errorf("datasource %s: %w", ds.name, err)
	}
	return nil
}

// connect builds the pool. Callers hold ds.mu.
func (ds *DataSource) connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(ds.cfg.DSN())
	if err != nil {
		return err
	}

	p := ds.cfg.Pool.withDefaults()
	poolCfg.MaxConns = int32(p.MaxOpen)
	poolCfg.MinConns = int32(p.MaxIdle)
	poolCfg.MaxConnLifetime = p.MaxLifetime
	poolCfg.MaxConnIdleTime = p.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return err
	}

	ds.pool = pool
	ds.logger.Debug("datasource pool opened",
		zap.String("datasource", ds.name),
		zap.String("host", ds.cfg.Host),
		zap.String("database", ds.cfg.Database))
	return nil
}

// Pool returns the underlying pool, or nil before Open.
func (ds *DataSource) Pool() *pgxpool.Pool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.pool
}

// Ping checks connectivity.
func (ds *DataSource) Ping(ctx context.Context) error {
	ds.mu.Lock()
	pool := ds.pool
	ds.mu.Unlock()

	if pool == nil {
		return fmt.Errorf("datasource %s: not open", ds.name)
	}
	return pool.Ping(ctx)
}

// PoolStats reports connection pool statistics.
type PoolStats struct {
	OpenConnections int
	InUse           int
	Idle            int
}

// Stats returns pool statistics, zero before Open.
func (ds *DataSource) Stats() PoolStats {
	ds.mu.Lock()
	pool := ds.pool
	ds.mu.Unlock()

	if pool == nil {
		return PoolStats{}
	}
	s := pool.Stat()
	return PoolStats{
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
	}
}

// AttachRegistry records the model registry that bound an entry to this
// datasource. Called by the registry on first binding.
func (ds *DataSource) AttachRegistry(m *registry.Manager) {
	ds.registry.Store(m)
}

// DetachRegistry severs the registry backlink.
func (ds *DataSource) DetachRegistry() {
	ds.registry.Store(nil)
}

// Registry returns the model registry this datasource is bound to, or nil
// when no entry has been registered through it yet.
func (ds *DataSource) Registry() *registry.Manager {
	return ds.registry.Load()
}

// Models returns a live view over the models owned by this datasource. It
// returns nil until a registry has attached.
func (ds *DataSource) Models() *view.View {
	m := ds.registry.Load()
	if m == nil {
		return nil
	}
	return view.New(m, ds, registry.OwnerKindConnection)
}

// Close shuts the pool down and releases every model association held by
// this datasource.
func (ds *DataSource) Close() error {
	ds.mu.Lock()
	if ds.pool != nil {
		ds.pool.Close()
		ds.pool = nil
		ds.logger.Debug("datasource pool closed", zap.String("datasource", ds.name))
	}
	ds.mu.Unlock()

	if m := ds.registry.Load(); m != nil {
		m.ReleaseOwner(ds)
	}
	return nil
}
