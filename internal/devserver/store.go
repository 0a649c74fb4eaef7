// Package devserver is a local stand-in for the remote Session/Chat service.
// It keeps conversation history per session and answers chat turns with either
// a Gemini model or a canned demo reply.
package devserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ChatFront/internal/session"
)

// ErrNotFound is returned for an unknown session id
var ErrNotFound = errors.New("session not found")

// Store persists sessions and their message history
type Store interface {
	Create(ctx context.Context, id string, now time.Time) (session.Summary, error)
	List(ctx context.Context) ([]session.Summary, error)
	Messages(ctx context.Context, id string) ([]session.Message, error)
	Append(ctx context.Context, id string, now time.Time, messages ...session.Message) error
	Delete(ctx context.Context, id string) error
	Close() error
}

type memorySession struct {
	summary  session.Summary
	messages []session.Message
}

// MemoryStore keeps everything in process; it is lost on exit
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) Create(_ context.Context, id string, now time.Time) (session.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := session.Summary{
		ID:         id,
		CreatedAt:  session.Timestamp{Time: now},
		LastActive: session.Timestamp{Time: now},
	}
	s.sessions[id] = &memorySession{summary: summary}
	return summary, nil
}

// List returns sessions most recently active first
func (s *MemoryStore) List(_ context.Context) ([]session.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]session.Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastActive.Equal(out[j].LastActive.Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastActive.After(out[j].LastActive.Time)
	})
	return out, nil
}

func (s *MemoryStore) Messages(_ context.Context, id string) ([]session.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]session.Message, len(sess.messages))
	copy(out, sess.messages)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, id string, now time.Time, messages ...session.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.messages = append(sess.messages, messages...)
	sess.summary.MessageCount = len(sess.messages)
	sess.summary.LastActive = session.Timestamp{Time: now}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
