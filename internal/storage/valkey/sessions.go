package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	vk "github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
)

// endScript stamps endedAt once. It returns 0 for an unknown session.
var endScript = vk.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSETNX', KEYS[1], 'endedAt', ARGV[1])
return 1
`)

// appendScript pushes ARGV onto KEYS[2] while KEYS[1] exists. It returns -1
// for a missing owner and the new list length otherwise.
var appendScript = vk.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('RPUSH', KEYS[2], unpack(ARGV))
`)

// extendScript appends path segments. -1 = unknown path, -2 = closed.
var extendScript = vk.NewLuaScript(`
local closed = redis.call('HGET', KEYS[1], 'closed')
if closed == false then
  return -1
end
if closed == '1' then
  return -2
end
return redis.call('RPUSH', KEYS[2], unpack(ARGV))
`)

// closeScript marks a path closed. It returns 0 for an unknown path.
var closeScript = vk.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'closed', '1')
return 1
`)

// SessionStore keeps session hashes, their action lists and viewer paths.
type SessionStore struct {
	client vk.Client
}

func NewSessionStore(client vk.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) StartHostSession(ctx context.Context, h *models.HostSession) error {
	if h.SessionID == "" {
		h.SessionID = uuid.NewString()
	}
	return s.start(ctx, h.SessionID, models.KindHost, h.SceneID, h.UserID)
}

func (s *SessionStore) EndHostSession(ctx context.Context, h *models.HostSession) error {
	return s.end(ctx, h.SessionID)
}

func (s *SessionStore) StartAnalyticsSession(ctx context.Context, a *models.AnalyticsSession) error {
	if a.SessionID == "" {
		a.SessionID = uuid.NewString()
	}
	return s.start(ctx, a.SessionID, models.KindAnalytics, a.SceneID, a.UserID)
}

func (s *SessionStore) EndAnalyticsSession(ctx context.Context, a *models.AnalyticsSession) error {
	return s.end(ctx, a.SessionID)
}

func (s *SessionStore) start(ctx context.Context, id string, kind models.SessionKind, sceneID, userID string) error {
	cmd := s.client.B().Hset().Key(sessionKey(id)).FieldValue().
		FieldValue("kind", string(kind)).
		FieldValue("sceneId", sceneID).
		FieldValue("userId", userID).
		FieldValue("startedAt", strconv.FormatInt(time.Now().UnixMilli(), 10)).
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("start %s session %s: %w", kind, id, err)
	}
	return nil
}

func (s *SessionStore) end(ctx context.Context, id string) error {
	n, err := endScript.Exec(ctx, s.client, []string{sessionKey(id)}, []string{strconv.FormatInt(time.Now().UnixMilli(), 10)}).AsInt64()
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *SessionStore) LogAction(ctx context.Context, action models.AnalyticsAction) error {
	if action.Timestamp == 0 {
		action.Timestamp = time.Now().Unix()
	}
	raw, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	n, err := appendScript.Exec(ctx, s.client,
		[]string{sessionKey(action.SessionID), actionsKey(action.SessionID)},
		[]string{string(raw)}).AsInt64()
	if err != nil {
		return fmt.Errorf("log action for session %s: %w", action.SessionID, err)
	}
	if n < 0 {
		return fmt.Errorf("session %s: %w", action.SessionID, storage.ErrNotFound)
	}
	return nil
}

func (s *SessionStore) CreatePath(ctx context.Context, sessionID string) (string, error) {
	id := uuid.NewString()
	cmd := s.client.B().Hset().Key(pathKey(id)).FieldValue().
		FieldValue("sessionId", sessionID).
		FieldValue("closed", "0").
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return "", fmt.Errorf("create path: %w", err)
	}
	return id, nil
}

func (s *SessionStore) ExtendPath(ctx context.Context, pathID string, segments []models.PathSegment) (int, int, error) {
	if len(segments) == 0 {
		n, err := s.client.Do(ctx, s.client.B().Llen().Key(segmentsKey(pathID)).Build()).AsInt64()
		if err != nil {
			return 0, 0, fmt.Errorf("read path %s: %w", pathID, err)
		}
		return 0, int(n), nil
	}
	args := make([]string, 0, len(segments))
	for _, seg := range segments {
		raw, err := json.Marshal(seg)
		if err != nil {
			return 0, 0, fmt.Errorf("encode path segment: %w", err)
		}
		args = append(args, string(raw))
	}
	total, err := extendScript.Exec(ctx, s.client, []string{pathKey(pathID), segmentsKey(pathID)}, args).AsInt64()
	if err != nil {
		return 0, 0, fmt.Errorf("extend path %s: %w", pathID, err)
	}
	switch total {
	case -1:
		return 0, 0, fmt.Errorf("path %s: %w", pathID, storage.ErrNotFound)
	case -2:
		return 0, 0, fmt.Errorf("path %s is closed", pathID)
	}
	return len(segments), int(total), nil
}

func (s *SessionStore) ClosePath(ctx context.Context, pathID string) error {
	n, err := closeScript.Exec(ctx, s.client, []string{pathKey(pathID)}, nil).AsInt64()
	if err != nil {
		return fmt.Errorf("close path %s: %w", pathID, err)
	}
	if n == 0 {
		return fmt.Errorf("path %s: %w", pathID, storage.ErrNotFound)
	}
	return nil
}
