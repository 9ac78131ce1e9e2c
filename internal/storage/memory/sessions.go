package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
	"github.com/google/uuid"
)

// SessionRecord is the stored form of either session kind.
type SessionRecord struct {
	ID        string
	Kind      models.SessionKind
	SceneID   string
	UserID    string
	StartedAt time.Time
	EndedAt   time.Time
	Actions   []models.AnalyticsAction
}

type path struct {
	sessionID string
	segments  []models.PathSegment
	closed    bool
}

// SessionStore keeps session records and viewer paths in memory.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*SessionRecord // sessionID -> record
	paths     map[string]*path          // pathID -> path
	userIndex map[string][]string       // userID -> []sessionID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]*SessionRecord),
		paths:     make(map[string]*path),
		userIndex: make(map[string][]string),
	}
}

func (s *SessionStore) StartHostSession(_ context.Context, h *models.HostSession) error {
	if h.SessionID == "" {
		h.SessionID = uuid.NewString()
	}
	s.start(h.SessionID, models.KindHost, h.SceneID, h.UserID)
	return nil
}

func (s *SessionStore) EndHostSession(_ context.Context, h *models.HostSession) error {
	return s.end(h.SessionID)
}

func (s *SessionStore) StartAnalyticsSession(_ context.Context, a *models.AnalyticsSession) error {
	if a.SessionID == "" {
		a.SessionID = uuid.NewString()
	}
	s.start(a.SessionID, models.KindAnalytics, a.SceneID, a.UserID)
	return nil
}

func (s *SessionStore) EndAnalyticsSession(_ context.Context, a *models.AnalyticsSession) error {
	return s.end(a.SessionID)
}

func (s *SessionStore) start(id string, kind models.SessionKind, sceneID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &SessionRecord{ID: id, Kind: kind, SceneID: sceneID, UserID: userID, StartedAt: time.Now()}
	if userID != "" {
		s.userIndex[userID] = append(s.userIndex[userID], id)
	}
}

func (s *SessionStore) end(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now()
	}
	return nil
}

func (s *SessionStore) LogAction(_ context.Context, action models.AnalyticsAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[action.SessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", action.SessionID, storage.ErrNotFound)
	}
	if action.Timestamp == 0 {
		action.Timestamp = time.Now().Unix()
	}
	rec.Actions = append(rec.Actions, action)
	return nil
}

func (s *SessionStore) CreatePath(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.paths[id] = &path{sessionID: sessionID}
	return id, nil
}

func (s *SessionStore) ExtendPath(_ context.Context, pathID string, segments []models.PathSegment) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[pathID]
	if !ok {
		return 0, 0, fmt.Errorf("path %s: %w", pathID, storage.ErrNotFound)
	}
	if p.closed {
		return 0, len(p.segments), fmt.Errorf("path %s is closed", pathID)
	}
	p.segments = append(p.segments, segments...)
	return len(segments), len(p.segments), nil
}

func (s *SessionStore) ClosePath(_ context.Context, pathID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[pathID]
	if !ok {
		return fmt.Errorf("path %s: %w", pathID, storage.ErrNotFound)
	}
	p.closed = true
	return nil
}

// Session returns a copy of the stored record.
func (s *SessionStore) Session(id string) (SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[id]
	if !ok {
		return SessionRecord{}, false
	}
	return *rec, true
}

// SessionsForUser lists the session IDs a user has started.
func (s *SessionStore) SessionsForUser(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.userIndex[userID]...)
}
