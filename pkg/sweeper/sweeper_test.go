package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/redis"
)

type fakeStore struct {
	mu            sync.Mutex
	stickerSweeps int
	castSweeps    int
	stickerErr    error
	olderThan     time.Duration
}

func (f *fakeStore) ExpireStickers(ctx context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stickerSweeps++
	f.olderThan = olderThan
	if f.stickerErr != nil {
		return 0, f.stickerErr
	}
	return 2, nil
}

func (f *fakeStore) ExpireCasts(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.castSweeps++
	return 1, nil
}

func (f *fakeStore) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stickerSweeps, f.castSweeps
}

type fakeLocker struct {
	mu   sync.Mutex
	err  error
	keys []string
}

func (f *fakeLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return fn()
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestSweeperRunsBothSweepsOnStart(t *testing.T) {
	store := &fakeStore{}
	locker := &fakeLocker{}
	s := NewSweeper(store, locker, Config{
		StickerTTL:      24 * time.Hour,
		StickerInterval: time.Hour,
		CastInterval:    time.Hour,
	}, testLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		stickers, casts := store.counts()
		return stickers == 1 && casts == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 24*time.Hour, store.olderThan)
}

func TestSweeperSweepsCastsOnTheirOwnCadence(t *testing.T) {
	store := &fakeStore{}
	locker := &fakeLocker{}
	s := NewSweeper(store, locker, Config{
		StickerInterval: time.Hour,
		CastInterval:    10 * time.Millisecond,
	}, testLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		stickers, casts := store.counts()
		return casts >= 3 && stickers == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSweeperSkipsWhenLockHeldElsewhere(t *testing.T) {
	store := &fakeStore{}
	locker := &fakeLocker{err: redis.ErrLockNotAcquired}
	s := NewSweeper(store, locker, Config{
		StickerInterval: time.Hour,
		CastInterval:    time.Hour,
	}, testLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		locker.mu.Lock()
		defer locker.mu.Unlock()
		return len(locker.keys) >= 2
	}, time.Second, 10*time.Millisecond)

	stickers, casts := store.counts()
	assert.Zero(t, stickers)
	assert.Zero(t, casts)
}

func TestSweeperKeepsRunningAfterSweepError(t *testing.T) {
	store := &fakeStore{stickerErr: errors.New("graph unavailable")}
	locker := &fakeLocker{}
	s := NewSweeper(store, locker, Config{
		StickerInterval: 10 * time.Millisecond,
		CastInterval:    time.Hour,
	}, testLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		stickers, _ := store.counts()
		return stickers >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSweeperStartTwiceFails(t *testing.T) {
	s := NewSweeper(&fakeStore{}, &fakeLocker{}, Config{}, testLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.ErrorIs(t, s.Start(context.Background()), ErrSweeperAlreadyRunning)
}

func TestSweeperStopIsIdempotent(t *testing.T) {
	s := NewSweeper(&fakeStore{}, &fakeLocker{}, Config{}, testLogger())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestNewSweeperAppliesDefaults(t *testing.T) {
	s := NewSweeper(&fakeStore{}, &fakeLocker{}, Config{}, testLogger())

	assert.Equal(t, DefaultStickerTTL, s.config.StickerTTL)
	assert.Equal(t, DefaultStickerInterval, s.config.StickerInterval)
	assert.Equal(t, DefaultCastInterval, s.config.CastInterval)
	assert.Equal(t, DefaultLockTTL, s.config.LockTTL)
}
