package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/background"
	"github.com/user/blog-go/comments"
	"github.com/user/blog-go/config"
	"github.com/user/blog-go/db"
	"github.com/user/blog-go/events"
	"github.com/user/blog-go/memstore"
	"github.com/user/blog-go/posts"
	"github.com/user/blog-go/tags"
)

// redisLockTTL bounds how long a crashed sweeper can keep the others out.
const redisLockTTL = 15 * time.Minute

// backend holds the stores and event sinks for the configured STORAGE_DRIVER.
// Request handlers use the app pool; the sweeper works through the job pool.
type backend struct {
	users    auth.UserStore
	tags     tags.Store
	posts    posts.Store
	jobPosts posts.Store
	comments comments.Store

	jobPool     *pgxpool.Pool
	broadcaster *events.Broadcaster
	publisher   events.Publisher

	closers []func()
}

func openBackend(ctx context.Context, cfg *config.AppConfig) (*backend, error) {
	b := &backend{broadcaster: events.NewBroadcaster()}

	switch cfg.Storage {
	case config.StorageMemory:
		log.Println("Using in-memory storage; data is lost on exit.")
		mem := memstore.New()
		b.users, b.tags, b.posts, b.jobPosts, b.comments = mem.Users(), mem.Tags(), mem.Posts(), mem.Posts(), mem.Comments()

	case config.StoragePostgres:
		appPool, jobPool, err := db.NewDBPools(cfg.DBPools)
		if err != nil {
			return nil, fmt.Errorf("failed to create database pools: %w", err)
		}
		b.closers = append(b.closers, appPool.Close, jobPool.Close)
		b.jobPool = jobPool

		if err := db.EnableExtensions(jobPool); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to enable extensions: %w", err)
		}
		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.DBPools.JobPool, cfg.MigrationsDir); err != nil {
				b.Close()
				return nil, err
			}
		}

		b.users = auth.NewPgUserStore(appPool)
		b.tags = tags.NewPgStore(appPool)
		b.posts = posts.NewPgStore(appPool)
		b.jobPosts = posts.NewPgStore(jobPool)
		b.comments = comments.NewPgStore(appPool)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage)
	}

	sinks := events.Multi{b.broadcaster}
	if cfg.Events.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, nc.Close)
		sinks = append(sinks, nc)
		log.Printf("Publishing post events to NATS at %s", cfg.Events.NATSURL)
	}
	b.publisher = sinks

	return b, nil
}

// Sweeper builds the expiry sweeper with the configured lock.
func (b *backend) Sweeper(ctx context.Context, cfg *config.AppConfig) (*background.ExpirySweeper, error) {
	var locker background.Locker = background.NoopLocker{}
	switch cfg.Sweeper.Lock {
	case config.SweepLockPostgres:
		if b.jobPool == nil {
			return nil, fmt.Errorf("SWEEP_LOCK=%s needs postgres storage", config.SweepLockPostgres)
		}
		locker = background.NewPgAdvisoryLocker(b.jobPool)
	case config.SweepLockRedis:
		client, err := background.ConnectRedis(ctx, cfg.Sweeper.RedisURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		locker = background.NewRedisLocker(client, "blog:sweep-lock", redisLockTTL)
	}

	manager := posts.NewManager(b.jobPosts,
		posts.WithMaxAge(cfg.Sweeper.MaxAge),
		posts.WithPublisher(b.publisher),
	)
	return background.NewExpirySweeper(manager, cfg.Sweeper.MaxAge, cfg.Sweeper.Interval,
		background.WithLocker(locker),
		background.WithPublisher(b.publisher),
	), nil
}

// Close releases everything in reverse order of acquisition.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
