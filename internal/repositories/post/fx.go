package post

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/xhs-likes-manager/internal/db"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	pkgpgx "github.com/orgball2608/xhs-likes-manager/pkg/pgx"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In
	LC fx.Lifecycle

	Config  *config.Config
	Logger  logger.Logger
	Options Options `optional:"true"`
}

// New picks the backend named by storage.driver. The store is loaded when the
// app starts and connections are closed when it stops.
func New(opts Opts) (Repository, error) {
	cfg := opts.Config

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		var (
			conn *sql.DB
			repo = &SQLite{logger: opts.Logger.WithComponent("SQLiteRecordStore")}
		)
		opts.LC.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				var err error
				conn, err = db.OpenSQLite(ctx, cfg.StoragePath())
				if err != nil {
					return err
				}
				repo.db = conn
				opts.Logger.Debug("Record store opened", "driver", cfg.Storage.Driver, "path", cfg.StoragePath())
				return nil
			},
			OnStop: func(ctx context.Context) error {
				if conn == nil {
					return nil
				}
				return conn.Close()
			},
		})
		return repo, nil

	case config.DriverPostgres:
		var (
			pool *pgxpool.Pool
			repo = &Pgx{logger: opts.Logger.WithComponent("PostgresRecordStore")}
		)
		opts.LC.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				var err error
				pool, err = pkgpgx.New(ctx, cfg.Storage.DSN, opts.Logger)
				if err != nil {
					return err
				}
				if err := db.MigratePostgres(ctx, pool); err != nil {
					pool.Close()
					return err
				}
				repo.pg = pool
				return nil
			},
			OnStop: func(ctx context.Context) error {
				if pool != nil {
					pool.Close()
				}
				return nil
			},
		})
		return repo, nil

	case config.DriverJSON, "":
		repo := NewJSONFile(cfg.StoragePath(), opts.Options, opts.Logger)
		opts.LC.Append(fx.Hook{
			OnStart: repo.Load,
		})
		return repo, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

var Module = fx.Module("post_repository",
	fx.Provide(New),
)
