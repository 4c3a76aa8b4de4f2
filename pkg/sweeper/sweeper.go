// Package sweeper runs the background expiry loops for ephemeral
// content. Expiry itself is a graph-side mark, so each run is
// idempotent; the distributed lock only keeps replicas from doing the
// same work twice.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var (
	// ErrSweeperAlreadyRunning is returned when trying to start an already running sweeper
	ErrSweeperAlreadyRunning = errors.New("sweeper already running")
)

const (
	// DefaultStickerTTL is how long a sticker stays alive
	DefaultStickerTTL = 24 * time.Hour

	// DefaultStickerInterval is the default interval between sticker sweeps
	DefaultStickerInterval = 24 * time.Hour

	// DefaultCastInterval is the default interval between cast sweeps
	DefaultCastInterval = time.Minute

	// DefaultLockTTL is the default TTL for distributed sweep locks
	DefaultLockTTL = 60 * time.Second

	stickerLockKey = "sweeper:stickers"
	castLockKey    = "sweeper:casts"
)

// ExpiryStore marks expired content in the graph. Both operations
// return the number of nodes expired by the run.
type ExpiryStore interface {
	ExpireStickers(ctx context.Context, olderThan time.Duration) (int, error)
	ExpireCasts(ctx context.Context) (int, error)
}

// Locker fences sweep runs across replicas. Satisfied by
// *redis.Locker.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// Config holds configuration for the sweeper
type Config struct {
	// StickerTTL is the age at which a sticker expires
	StickerTTL time.Duration

	// StickerInterval is how often to sweep stickers
	StickerInterval time.Duration

	// CastInterval is how often to sweep casts
	CastInterval time.Duration

	// LockTTL is how long to hold a sweep lock
	LockTTL time.Duration
}

// Sweeper expires stickers and casts on their own cadences.
type Sweeper struct {
	store  ExpiryStore
	locker Locker
	config Config
	logger ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewSweeper creates a new sweeper
func NewSweeper(store ExpiryStore, locker Locker, config Config, logger ectologger.Logger) *Sweeper {
	if config.StickerTTL <= 0 {
		config.StickerTTL = DefaultStickerTTL
	}
	if config.StickerInterval <= 0 {
		config.StickerInterval = DefaultStickerInterval
	}
	if config.CastInterval <= 0 {
		config.CastInterval = DefaultCastInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Sweeper{
		store:    store,
		locker:   locker,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the sweep loops
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSweeperAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting sweeper: sticker_ttl=%s sticker_interval=%s cast_interval=%s",
		s.config.StickerTTL, s.config.StickerInterval, s.config.CastInterval)

	go s.sweepLoop(ctx)

	return nil
}

// Stop stops the sweeper gracefully
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping sweeper...")

	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Sweeper stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Sweeper shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the sweeper is running
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Sweeper) sweepLoop(ctx context.Context) {
	defer close(s.stoppedC)

	stickerTicker := time.NewTicker(s.config.StickerInterval)
	defer stickerTicker.Stop()

	castTicker := time.NewTicker(s.config.CastInterval)
	defer castTicker.Stop()

	// Run both immediately on start so a restart never extends content
	// past its deadline.
	s.sweepStickers(ctx)
	s.sweepCasts(ctx)

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debug("Sweep loop stopping")
			return
		case <-stickerTicker.C:
			s.sweepStickers(ctx)
		case <-castTicker.C:
			s.sweepCasts(ctx)
		}
	}
}

func (s *Sweeper) sweepStickers(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Sweeper.sweepStickers")
	defer span.End()

	s.runLocked(ctx, stickerLockKey, "sticker", func(ctx context.Context) (int, error) {
		return s.store.ExpireStickers(ctx, s.config.StickerTTL)
	})
}

func (s *Sweeper) sweepCasts(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Sweeper.sweepCasts")
	defer span.End()

	s.runLocked(ctx, castLockKey, "cast", func(ctx context.Context) (int, error) {
		return s.store.ExpireCasts(ctx)
	})
}

func (s *Sweeper) runLocked(ctx context.Context, lockKey, kind string, sweep func(ctx context.Context) (int, error)) {
	start := time.Now()

	err := s.locker.WithLock(ctx, lockKey, s.config.LockTTL, func() error {
		expired, err := sweep(ctx)
		if err != nil {
			return err
		}

		metrics.RecordSweep(kind, expired, time.Since(start).Seconds())

		if expired > 0 {
			s.logger.WithContext(ctx).Infof("Swept %d expired %ss in %s", expired, kind, time.Since(start))
		} else {
			s.logger.WithContext(ctx).Debugf("No expired %ss", kind)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			s.logger.WithContext(ctx).Debugf("Skipping %s sweep, another replica holds the lock", kind)
			return
		}
		s.logger.WithContext(ctx).WithError(err).Errorf("Failed to sweep %ss", kind)
	}
}
