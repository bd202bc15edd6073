package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// fakeRedis implements SET NX and the compare-and-delete script in memory.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
	evals  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake, time.Second, 50*time.Millisecond, zerolog.Nop())

	release, err := l.Acquire(context.Background(), "slot:x")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, ok := fake.values["vetcare:lock:slot:x"]; !ok {
		t.Fatal("expected prefixed key to be set")
	}

	release()
	release()
	if fake.evals != 1 {
		t.Errorf("expected exactly one release script call, got %d", fake.evals)
	}
	if len(fake.values) != 0 {
		t.Errorf("expected key deleted, got %v", fake.values)
	}
}

func TestRedisLocker_TimeoutWhenHeld(t *testing.T) {
	fake := newFakeRedis()
	fake.values["vetcare:lock:"+FreeFormKey] = "someone-else"
	l := NewRedisLocker(fake, time.Second, 30*time.Millisecond, zerolog.Nop())

	_, err := l.Acquire(context.Background(), FreeFormKey)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake, time.Second, time.Second, zerolog.Nop())

	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	release2, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	release2()
}

func TestRedisLocker_ForeignTokenNotDeleted(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake, time.Second, 50*time.Millisecond, zerolog.Nop())

	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// Simulate TTL expiry followed by another holder.
	fake.values["vetcare:lock:k"] = "other-token"
	release()

	if fake.values["vetcare:lock:k"] != "other-token" {
		t.Error("release removed a lock it did not own")
	}
}

func TestRedisLocker_ClientError(t *testing.T) {
	fake := newFakeRedis()
	fake.setErr = errors.New("connection refused")
	l := NewRedisLocker(fake, time.Second, 50*time.Millisecond, zerolog.Nop())

	_, err := l.Acquire(context.Background(), "k")
	if err == nil || errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected client error, got %v", err)
	}
}
