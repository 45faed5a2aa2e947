package redlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// KeyLocker serialises work per key. The returned release func must be called
// exactly once.
type KeyLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// KeyedMutex is an in-process KeyLocker. Entries are reference counted and
// removed once nobody holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.drop(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.drop(key, e)
		})
	}, nil
}

func (k *KeyedMutex) drop(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (k *KeyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// RedisKeyLocker is a KeyLocker shared across processes through Redis.
type RedisKeyLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisKeyLocker(client redis.UniversalClient, prefix string, ttl, wait time.Duration) *RedisKeyLocker {
	return &RedisKeyLocker{client: client, prefix: prefix, ttl: ttl, wait: wait}
}

func (r *RedisKeyLocker) Acquire(ctx context.Context, key string) (func(), error) {
	locker := NewLocker(r.client, r.prefix+key, uuid.NewString())
	if err := locker.WaitLock(ctx, r.ttl, r.wait); err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled; release regardless.
			if err := locker.Unlock(context.Background()); err != nil {
				logrus.WithField("key", key).Warnf("releasing idempotency lock: %v", err)
			}
		})
	}, nil
}
