package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultRedeliveryLockTTL = DeliveryTimeout + 30*time.Second

// MemoryDeliveryLocker serializes redelivery of a delivery within one
// process. Expired entries are taken over by the next caller; a handle only
// releases the acquisition it was issued for.
type MemoryDeliveryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	nowFn func() time.Time
}

type memoryLock struct {
	token string
	until time.Time
}

func NewMemoryDeliveryLocker() *MemoryDeliveryLocker {
	return &MemoryDeliveryLocker{
		locks: make(map[string]memoryLock),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryDeliveryLocker) Acquire(_ context.Context, deliveryID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: delivery locker is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return nil, fmt.Errorf("core: delivery id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultRedeliveryLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[deliveryID]; ok && now.Before(held.until) {
		return nil, fmt.Errorf("%w: delivery %q", ErrDeliveryLocked, deliveryID)
	}
	token := uuid.NewString()
	l.locks[deliveryID] = memoryLock{token: token, until: now.Add(ttl)}
	return &memoryLockHandle{locker: l, deliveryID: deliveryID, token: token}, nil
}

type memoryLockHandle struct {
	locker     *MemoryDeliveryLocker
	deliveryID string
	token      string
	once       sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		defer h.locker.mu.Unlock()
		if held, ok := h.locker.locks[h.deliveryID]; ok && held.token == h.token {
			delete(h.locker.locks, h.deliveryID)
		}
	})
	return nil
}
