package goredis

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-webhooks/core"
	"github.com/redis/go-redis/v9"
)

func TestLocker_SecondAcquireConflicts(t *testing.T) {
	ctx := context.Background()
	locker := newFakeLocker(t, newFakeClient())

	handle, err := locker.Acquire(ctx, "d_1", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := locker.Acquire(ctx, "d_1", time.Minute); !errors.Is(err, core.ErrDeliveryLocked) {
		t.Fatalf("expected ErrDeliveryLocked, got %v", err)
	}
	if _, err := locker.Acquire(ctx, "d_2", time.Minute); err != nil {
		t.Fatalf("expected other delivery to be lockable: %v", err)
	}

	if err := handle.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := locker.Acquire(ctx, "d_1", time.Minute); err != nil {
		t.Fatalf("expected re-acquire after unlock: %v", err)
	}
}

func TestLocker_UnlockKeepsForeignToken(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	locker := newFakeLocker(t, client)

	handle, err := locker.Acquire(ctx, "d_1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// Simulate expiry followed by another process taking the lock.
	client.set(DefaultKeyPrefix+"d_1", "other-process")

	if err := handle.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if got := client.get(DefaultKeyPrefix + "d_1"); got != "other-process" {
		t.Fatalf("expected foreign lock to survive, got %q", got)
	}
}

func TestLocker_UsesKeyPrefixAndDefaultTTL(t *testing.T) {
	client := newFakeClient()
	locker := newFakeLocker(t, client, WithKeyPrefix("app:lock:"))

	if _, err := locker.Acquire(context.Background(), " d_1 ", 0); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if client.lastKey != "app:lock:d_1" {
		t.Fatalf("expected prefixed key, got %q", client.lastKey)
	}
	if client.lastTTL != defaultLockTTL {
		t.Fatalf("expected default ttl %s, got %s", defaultLockTTL, client.lastTTL)
	}
}

func TestLocker_Errors(t *testing.T) {
	if _, err := NewLocker(nil); err == nil {
		t.Fatalf("expected nil client error")
	}
	locker := newFakeLocker(t, newFakeClient())
	if _, err := locker.Acquire(context.Background(), "  ", time.Second); err == nil {
		t.Fatalf("expected empty delivery id error")
	}

	failing := newFakeClient()
	failing.setErr = errors.New("connection refused")
	locker = newFakeLocker(t, failing)
	_, err := locker.Acquire(context.Background(), "d_1", time.Second)
	if err == nil || errors.Is(err, core.ErrDeliveryLocked) {
		t.Fatalf("expected transport error distinct from lock conflict, got %v", err)
	}
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatalf("expected empty address error")
	}
	client, err := NewClient("redis://localhost:6379/2")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if client.Options().DB != 2 {
		t.Fatalf("expected db 2 from url, got %d", client.Options().DB)
	}
	_ = client.Close()
}

func TestLocker_RedisIntegration(t *testing.T) {
	addr := os.Getenv("WEBHOOKS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WEBHOOKS_TEST_REDIS_ADDR not set")
	}
	client, err := NewClient(addr)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	locker, err := NewLocker(client, WithKeyPrefix("go-webhooks-test::"+strconv.FormatInt(time.Now().UnixNano(), 10)+"::"))
	if err != nil {
		t.Fatalf("locker: %v", err)
	}
	ctx := context.Background()
	handle, err := locker.Acquire(ctx, "d_1", 5*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer handle.Unlock(ctx)
	if _, err := locker.Acquire(ctx, "d_1", 5*time.Second); !errors.Is(err, core.ErrDeliveryLocked) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func newFakeLocker(t *testing.T, client Client, opts ...Option) *Locker {
	t.Helper()
	locker, err := NewLocker(client, opts...)
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	seq := 0
	locker.tokenFn = func() string {
		seq++
		return "token-" + strconv.Itoa(seq)
	}
	return locker
}

type fakeClient struct {
	mu      sync.Mutex
	values  map[string]string
	lastKey string
	lastTTL time.Duration
	setErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string]string{}}
}

func (c *fakeClient) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastKey = key
	c.lastTTL = expiration
	if c.setErr != nil {
		return redis.NewBoolResult(false, c.setErr)
	}
	if _, exists := c.values[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	c.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (c *fakeClient) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(keys) == 1 && len(args) == 1 && c.values[keys[0]] == args[0] {
		delete(c.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (c *fakeClient) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

func (c *fakeClient) get(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}
