// Package background runs the periodic expiry sweep outside the request cycle, and the
// locks that keep concurrent instances from sweeping at the same time.
package background

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/user/blog-go/events"
	"github.com/user/blog-go/posts"
)

const (
	// DefaultInterval is how often Start runs a sweep.
	DefaultInterval = time.Hour

	// numDeleteWorkers bounds how many deletes run at once within one sweep.
	numDeleteWorkers = 3
)

// PostSource is the part of posts.Manager the sweeper needs.
type PostSource interface {
	ListOlderThan(ctx context.Context, age time.Duration) ([]posts.Post, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// SweepResult summarises one run.
type SweepResult struct {
	RunID   string
	Skipped bool // another instance held the lock
	Found   int
	Deleted []int64
	Failed  []int64
}

// ExpirySweeper deletes posts older than MaxAge, once per Interval.
type ExpirySweeper struct {
	source    PostSource
	locker    Locker
	publisher events.Publisher
	now       func() time.Time

	MaxAge   time.Duration
	Interval time.Duration

	wg sync.WaitGroup
}

// SweeperOption configures an ExpirySweeper.
type SweeperOption func(*ExpirySweeper)

// WithLocker makes every run hold l.
func WithLocker(l Locker) SweeperOption {
	return func(s *ExpirySweeper) { s.locker = l }
}

// WithPublisher sends a post.expired event for each deleted post.
func WithPublisher(p events.Publisher) SweeperOption {
	return func(s *ExpirySweeper) { s.publisher = p }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *ExpirySweeper) { s.now = now }
}

// NewExpirySweeper creates a sweeper. Zero maxAge or interval fall back to the defaults.
func NewExpirySweeper(source PostSource, maxAge, interval time.Duration, opts ...SweeperOption) *ExpirySweeper {
	if maxAge <= 0 {
		maxAge = posts.DefaultMaxAge
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &ExpirySweeper{
		source:    source,
		locker:    NoopLocker{},
		publisher: events.Nop{},
		now:       time.Now,
		MaxAge:    maxAge,
		Interval:  interval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs a single sweep. A failure to delete one post does not stop the others;
// all such failures come back together as one error alongside the result.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	res := SweepResult{RunID: uuid.NewString()}

	release, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		return res, fmt.Errorf("sweep %s: acquire lock: %w", res.RunID, err)
	}
	if !ok {
		log.Printf("Sweep %s: lock held elsewhere, skipping.", res.RunID)
		res.Skipped = true
		return res, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Printf("Sweep %s: failed to release lock: %v", res.RunID, err)
		}
	}()

	expired, err := s.source.ListOlderThan(ctx, s.MaxAge)
	if err != nil {
		return res, fmt.Errorf("sweep %s: list expired posts: %w", res.RunID, err)
	}
	res.Found = len(expired)
	if len(expired) == 0 {
		return res, nil
	}

	jobs := make(chan posts.Post)
	var (
		mu     sync.Mutex
		errs   *multierror.Error
		wg     sync.WaitGroup
		worker = func() {
			defer wg.Done()
			for p := range jobs {
				deleted, err := s.source.Delete(ctx, p.ID)
				mu.Lock()
				switch {
				case err != nil:
					log.Printf("Sweep %s: failed to delete post %d: %v", res.RunID, p.ID, err)
					res.Failed = append(res.Failed, p.ID)
					errs = multierror.Append(errs, fmt.Errorf("post %d: %w", p.ID, err))
				case deleted:
					res.Deleted = append(res.Deleted, p.ID)
				}
				mu.Unlock()
				if err == nil && deleted {
					s.announce(ctx, p)
				}
			}
		}
	)

	workers := numDeleteWorkers
	if len(expired) < workers {
		workers = len(expired)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}
	for _, p := range expired {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	log.Printf("Sweep %s: %d expired, %d deleted, %d failed.", res.RunID, res.Found, len(res.Deleted), len(res.Failed))
	return res, errs.ErrorOrNil()
}

func (s *ExpirySweeper) announce(ctx context.Context, p posts.Post) {
	ev := events.New(events.PostExpired, p.ID, p.AuthorID, s.now())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Printf("Failed to publish %s for post %d: %v", ev.Type, p.ID, err)
	}
}

// Start runs a sweep now and then once per Interval until ctx is cancelled.
// Wait blocks until the loop has exited.
func (s *ExpirySweeper) Start(ctx context.Context) {
	log.Printf("Expiry sweeper starting (interval %s, max age %s)", s.Interval, s.MaxAge)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer log.Println("Expiry sweeper stopped.")

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		s.runLogged(ctx)
		for {
			select {
			case <-ticker.C:
				s.runLogged(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (s *ExpirySweeper) Wait() {
	s.wg.Wait()
}

func (s *ExpirySweeper) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Expiry sweep finished with errors: %v", err)
	}
}
