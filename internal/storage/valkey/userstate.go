package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	vk "github.com/valkey-io/valkey-go"
)

// UserStateStore keeps one hash per scene; values are stored as JSON.
type UserStateStore struct {
	client vk.Client
}

func NewUserStateStore(client vk.Client) *UserStateStore {
	return &UserStateStore{client: client}
}

// GetUserState returns nil for a key that was never set.
func (s *UserStateStore) GetUserState(ctx context.Context, sceneID, key string) (any, error) {
	raw, err := s.client.Do(ctx, s.client.B().Hget().Key(userStateKey(sceneID)).Field(key).Build()).ToString()
	if vk.IsValkeyNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user state %s/%s: %w", sceneID, key, err)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("decode user state %s/%s: %w", sceneID, key, err)
	}
	return value, nil
}

func (s *UserStateStore) SetUserState(ctx context.Context, sceneID, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode user state %s/%s: %w", sceneID, key, err)
	}
	cmd := s.client.B().Hset().Key(userStateKey(sceneID)).FieldValue().FieldValue(key, string(raw)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("write user state %s/%s: %w", sceneID, key, err)
	}
	return nil
}
