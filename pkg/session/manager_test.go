package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/handoff/pkg/adapters/memory"
	redisadapter "github.com/aretw0/handoff/pkg/adapters/redis"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
	"github.com/aretw0/handoff/pkg/session"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.Checkpoint
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Checkpoint)
	}
	s.data[threadID] = cp.Snapshot()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if cp, ok := s.data[threadID]; ok {
		return cp.Snapshot(), nil
	}
	return nil, domain.ErrThreadNotFound
}

func (s *SlowStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_ReadModifyWriteIsSerialized(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	require.NoError(t, store.Save(ctx, id, domain.NewCheckpoint(domain.NewState(id, "u1"))))

	var wg sync.WaitGroup
	writers := 10
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				cp, err := store.Load(ctx, id)
				if err != nil {
					return err
				}
				cp.Version++
				return store.Save(ctx, id, cp)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cp, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), cp.Version, "no update may be lost")
}

type corruptStore struct {
	ports.CheckpointStore
	saves atomic.Int32
}

func (c *corruptStore) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return nil, domain.NewCorruptCheckpointError(threadID, errors.New("bad json"))
}

func (c *corruptStore) Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error {
	c.saves.Add(1)
	return nil
}

func TestManager_LoadKeepsCorruptCheckpoint(t *testing.T) {
	store := &corruptStore{CheckpointStore: memory.NewStore()}
	manager := session.NewManager(store)

	_, err := manager.Load(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrCheckpointCorrupt)
	assert.Zero(t, store.saves.Load(), "corrupt checkpoint must not be overwritten")
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := redisadapter.NewLocker(client, "handoff:")
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(5*time.Second))
	ctx := context.Background()

	err := manager.WithLock(ctx, "t1", func(ctx context.Context) error {
		assert.True(t, mr.Exists("handoff:lock:t1"), "lease must be held while fn runs")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("handoff:lock:t1"), "lease must be released afterwards")
}

func TestManager_DistributedLockTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("handoff:lock:t1", "other-replica"))

	locker := redisadapter.NewLocker(client, "handoff:")
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	called := false
	err := manager.WithLock(ctx, "t1", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
