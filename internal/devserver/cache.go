package devserver

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"ChatFront/internal/session"
)

// cachedReply represents a cached model reply
type cachedReply struct {
	reply     string
	timestamp time.Time
}

// CachingResponder remembers replies for identical conversations for ttl
type CachingResponder struct {
	next Responder
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cachedReply
}

func NewCachingResponder(next Responder, ttl time.Duration) *CachingResponder {
	return &CachingResponder{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedReply),
	}
}

func (c *CachingResponder) Reply(ctx context.Context, history []session.Message, model string, temperature float64) (string, error) {
	key := cacheKey(history, model, temperature)
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && now.Sub(entry.timestamp) < c.ttl {
		c.mu.Unlock()
		return entry.reply, nil
	}
	delete(c.entries, key)
	c.mu.Unlock()

	reply, err := c.next.Reply(ctx, history, model, temperature)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = cachedReply{reply: reply, timestamp: now}
	c.mu.Unlock()
	return reply, nil
}

// cacheKey hashes the full request; the separator keeps role/content boundaries distinct
func cacheKey(history []session.Message, model string, temperature float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%g\x00", model, temperature)
	for _, msg := range history {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
