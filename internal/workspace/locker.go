package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/studio/pkg/redis"
)

// Kind names an operation that may run at most once per webinar at a time.
type Kind string

const (
	KindSlides        Kind = "slides"
	KindKnowledgeBase Kind = "knowledge_base"
	KindScript        Kind = "script"
)

// Kinds lists every lock kind.
var Kinds = []Kind{KindSlides, KindKnowledgeBase, KindScript}

// ErrBusy is returned when another task of the same kind holds the webinar.
var ErrBusy = errors.New("a generation task is already running for this webinar")

// Locker hands out per-webinar, per-kind locks with a TTL.
type Locker struct {
	kv  redis.KV
	ttl time.Duration
}

// NewLocker creates a Locker. The ttl bounds how long a crashed holder can
// keep a webinar locked.
func NewLocker(kv redis.KV, ttl time.Duration) *Locker {
	return &Locker{kv: kv, ttl: ttl}
}

// Release gives a lock back. Releasing twice, or after expiry, is a no-op.
type Release func(ctx context.Context) error

func lockKey(kind Kind, webinarID uuid.UUID) string {
	return fmt.Sprintf("lock:%s:%s", kind, webinarID)
}

// Acquire takes the kind lock for webinarID or fails with ErrBusy.
func (l *Locker) Acquire(ctx context.Context, kind Kind, webinarID uuid.UUID) (Release, error) {
	key := lockKey(kind, webinarID)
	token := uuid.NewString()
	ok, err := l.kv.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", kind, err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func(ctx context.Context) error {
		if _, err := l.kv.DelIfEqual(ctx, key, token); err != nil {
			return fmt.Errorf("release %s lock: %w", kind, err)
		}
		return nil
	}, nil
}

// Held reports whether any task currently holds webinarID.
func (l *Locker) Held(ctx context.Context, webinarID uuid.UUID) (bool, error) {
	for _, k := range Kinds {
		_, found, err := l.kv.Get(ctx, lockKey(k, webinarID))
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}
