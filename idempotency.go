package smartedit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultIdempotencyTTL = 10 * time.Minute

type cachedResult struct {
	result  Result
	err     error
	expires time.Time
}

// IdempotencyCache collapses repeated submissions of the same key into one
// execution. Concurrent callers share the in-flight run; later callers get
// the stored outcome until it expires. Expired entries are evicted lazily.
type IdempotencyCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cachedResult
}

func NewIdempotencyCache(ttl time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedResult),
	}
}

// Do runs fn once per key. An empty key always runs fn. The second return
// value reports whether the result was shared with another submission.
// Cancellations and deadlines are not remembered, so a retry runs again.
func (c *IdempotencyCache) Do(key string, fn func() (Result, error)) (Result, bool, error) {
	if key == "" {
		res, err := fn()
		return res, false, err
	}
	if res, err, ok := c.lookup(key); ok {
		return res, true, err
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		if res, err, ok := c.lookup(key); ok {
			return res, err
		}
		res, err := fn()
		if !retryable(err) {
			c.mu.Lock()
			c.entries[key] = cachedResult{result: res, err: err, expires: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return res, err
	})
	res, _ := v.(Result)
	return res, shared, err
}

func (c *IdempotencyCache) lookup(key string) (Result, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	e, ok := c.entries[key]
	return e.result, e.err, ok
}

func retryable(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
