package goredis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-webhooks/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "go-webhooks::redelivery_lock::"
	defaultLockTTL   = core.DeliveryTimeout + 30*time.Second
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is never released by us.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Client is the subset of redis.UniversalClient used by Locker.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Locker serializes redelivery of a delivery across processes with
// SET NX PX.
type Locker struct {
	client    Client
	keyPrefix string
	tokenFn   func() string
}

type Option func(*Locker)

func WithKeyPrefix(prefix string) Option {
	return func(l *Locker) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			l.keyPrefix = prefix
		}
	}
}

func NewLocker(client Client, opts ...Option) (*Locker, error) {
	if client == nil {
		return nil, fmt.Errorf("goredis: redis client is required")
	}
	l := &Locker{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
		tokenFn:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// NewClient builds a go-redis client for addr, accepting either host:port
// or a redis:// URL.
func NewClient(addr string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("goredis: redis address is required")
	}
	if strings.Contains(addr, "://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("goredis: parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func (l *Locker) Acquire(ctx context.Context, deliveryID string, ttl time.Duration) (core.LockHandle, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("goredis: locker is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return nil, fmt.Errorf("goredis: delivery id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	key := l.keyPrefix + deliveryID
	token := l.tokenFn()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("goredis: acquire lock %q: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: delivery %q", core.ErrDeliveryLocked, deliveryID)
	}
	return &lockHandle{client: l.client, key: key, token: token}, nil
}

type lockHandle struct {
	client Client
	key    string
	token  string
	once   sync.Once
	err    error
}

func (h *lockHandle) Unlock(ctx context.Context) error {
	if h == nil || h.client == nil {
		return nil
	}
	h.once.Do(func() {
		if err := h.client.Eval(ctx, releaseScript, []string{h.key}, h.token).Err(); err != nil {
			h.err = fmt.Errorf("goredis: release lock %q: %w", h.key, err)
		}
	})
	return h.err
}

var (
	_ core.DeliveryLocker = (*Locker)(nil)
	_ Client              = (*redis.Client)(nil)
	_ Client              = (redis.UniversalClient)(nil)
)
