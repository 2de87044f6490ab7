// Package db provides database connectivity and migration functionality for the blog application.
// It handles establishing database connections, managing connection pools, enabling required
// PostgreSQL extensions, and running database migrations.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers the postgres:// migrate driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // For file-based migrations
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // driver for database/sql, needed by migrate's postgres driver with DSN

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/config"
)

// DBTX is the subset of the pgx API shared by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
// Stores are written against it so the same query code runs inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	_ DBTX = (*pgxpool.Pool)(nil)
	_ DBTX = (pgx.Tx)(nil)
)

// SQLSTATE codes the stores react to.
const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a Postgres unique-constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolation
}

// IsForeignKeyViolation reports whether err is a Postgres foreign-key error, e.g. a
// comment inserted for a post deleted a moment earlier.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == ForeignKeyViolation
}

// WithTx runs fn inside a transaction on conn. The transaction is committed when fn returns nil
// and rolled back otherwise (including on panic, which is re-raised).
func WithTx(ctx context.Context, conn DBTX, fn func(tx pgx.Tx) error) (err error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return apperror.NewDatabaseError("failed to begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Printf("Error rolling back transaction: %v", rbErr)
			}
			return
		}
		if cmErr := tx.Commit(ctx); cmErr != nil {
			err = apperror.NewDatabaseError("failed to commit transaction", cmErr)
		}
	}()
	return fn(tx)
}

// NewDBPools establishes connections to PostgreSQL using the provided configuration.
// It returns two pools: one for request handling and one for background jobs (the sweeper).
func NewDBPools(cfg *config.DatabasePools) (*pgxpool.Pool, *pgxpool.Pool, error) {
	appPool, err := createPgxPool(cfg.AppPool)
	if err != nil {
		return nil, nil, apperror.NewDatabaseError("failed to create application pool", err)
	}

	jobPool, err := createPgxPool(cfg.JobPool)
	if err != nil {
		appPool.Close() // Clean up the app pool if job pool creation fails
		return nil, nil, apperror.NewDatabaseError("failed to create job pool", err)
	}

	return appPool, jobPool, nil
}

// createPgxPool establishes a single pgxpool connection pool.
func createPgxPool(cfg *config.PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error parsing DSN for database %s", cfg.DBName), err)
	}

	poolConfig.MaxConns = int32(cfg.MaxSize)
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.MaxConnLifetime = 30 * time.Minute

	// Prevents indefinite blocking if the database is unreachable.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error creating pgxpool for database %s", cfg.DBName), err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, apperror.NewDatabaseError(fmt.Sprintf("error connecting to the database %s with pgxpool", cfg.DBName), err)
	}

	return pool, nil
}

// DSN builds a postgres URL understood by both pgx and golang-migrate.
func DSN(cfg *config.PoolConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
	)
}

// EnableExtensions enables the PostgreSQL extensions the schema relies on.
// citext backs the case-insensitive uniqueness of tag names and user e-mails.
func EnableExtensions(pool *pgxpool.Pool) error {
	extensions := []string{"citext"}

	for _, ext := range extensions {
		// `CREATE EXTENSION IF NOT EXISTS` is idempotent.
		query := fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s;", ext)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := pool.Exec(ctx, query)
		cancel()
		if err != nil {
			return apperror.NewDatabaseError(fmt.Sprintf("failed to create extension %s", ext), err)
		}
	}

	return nil
}

// RunMigrations applies any pending migrations from migrationsPath against the database
// described by cfg. Files follow golang-migrate naming: 000001_init.up.sql / 000001_init.down.sql.
func RunMigrations(cfg *config.PoolConfig, migrationsPath string) error {
	return RunMigrationsDSN(DSN(cfg), migrationsPath)
}

// RunMigrationsDSN is RunMigrations for callers that already hold a connection string,
// such as integration tests against a throwaway container.
func RunMigrationsDSN(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return apperror.NewMigrationError("failed to create migrator", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			if srcErr != nil {
				log.Printf("Warning: error closing migration source: %v", srcErr)
			}
			if dbErr != nil {
				log.Printf("Warning: error closing migration database instance: %v", dbErr)
			}
		}
	}()

	// `migrate.ErrNoChange` means the schema is already current.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewMigrationError("failed to run migrations", err)
	}

	return nil
}
