package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camwood/camwood-site/backend/internal/model/chat"
	"github.com/camwood/camwood-site/backend/internal/service/conversation"
)

var ErrSessionNotFound = errors.New("session not found")

// ConversationFactory builds the controller behind a new session.
type ConversationFactory func() *conversation.Controller

type entry struct {
	session      chat.Session
	conversation *conversation.Controller
	lastActive   time.Time
}

// Service keeps the live widget conversations in memory. Nothing is persisted: a session
// disappears when it is ended, reaped or the process exits.
type Service struct {
	factory ConversationFactory
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewService bootstraps the session registry. A ttl of zero disables reaping.
func NewService(factory ConversationFactory, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		factory:  factory,
		ttl:      ttl,
		logger:   logger.Named("sessions"),
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*entry),
	}
}

// CreateSession provisions an anonymous session with a fresh conversation.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	now := s.now()
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = &entry{
		session:      session,
		conversation: s.factory(),
		lastActive:   now,
	}
	s.mu.Unlock()

	s.logger.Debug("session created", zap.String("session", session.ID))
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// Conversation returns the controller of a session and marks the session active.
func (s *Service) Conversation(_ context.Context, sessionID string) (*conversation.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastActive = s.now()
	return e.conversation, nil
}

// Touch marks a session active without handing out its conversation. Long-lived readers
// such as event streams call it so an attached client is not reaped.
func (s *Service) Touch(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	e.lastActive = s.now()
	return nil
}

// EndSession disposes the conversation and forgets the session.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	e.conversation.Dispose()
	s.logger.Debug("session ended", zap.String("session", sessionID))
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reap ends every session idle for longer than the ttl and returns how many were removed.
func (s *Service) Reap() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*entry
	for id, e := range s.sessions {
		if e.lastActive.Before(cutoff) {
			expired = append(expired, e)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, e := range expired {
		e.conversation.Dispose()
	}
	if len(expired) > 0 {
		s.logger.Info("reaped idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// RunReaper calls Reap every interval until ctx is done.
func (s *Service) RunReaper(ctx context.Context, interval time.Duration) error {
	if s.ttl <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Reap()
		}
	}
}

// Shutdown disposes every live conversation.
func (s *Service) Shutdown() {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for id, e := range s.sessions {
		entries = append(entries, e)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.conversation.Dispose()
	}
}
