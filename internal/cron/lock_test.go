package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedisStore struct {
	values  map[string]string
	deleted []string
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: make(map[string]string)}
}

func (s *fakeRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, held := s.values[key]; held {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *fakeRedisStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *fakeRedisStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
		s.deleted = append(s.deleted, key)
	}
	return nil
}

func TestRedisLockSecondAcquireLoses(t *testing.T) {
	store := newFakeRedisStore()
	first, err := NewRedisLock(store, "tl:cron-worker:lock:test", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(store, "tl:cron-worker:lock:test", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	ok, err := first.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	ok, err = second.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second replica should not win the lock")
	}
}

func TestRedisLockReleaseOnlyByOwner(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "tl:cron-worker:lock:test", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, err := lock.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("acquire = %v, %v", ok, err)
	}

	// Simulate TTL expiry and takeover by another replica.
	store.values["tl:cron-worker:lock:test"] = "someone-else"

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(store.deleted) != 0 {
		t.Fatal("lock held by another owner must not be deleted")
	}
	if store.values["tl:cron-worker:lock:test"] != "someone-else" {
		t.Fatal("takeover lock value changed")
	}
}

func TestRedisLockReleaseDeletesOwnKey(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "tl:cron-worker:lock:test", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, err := lock.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("acquire = %v, %v", ok, err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, held := store.values["tl:cron-worker:lock:test"]; held {
		t.Fatal("expected lock key deleted")
	}

	// Released lock can be taken again.
	if ok, err := lock.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("re-acquire = %v, %v", ok, err)
	}
}
