package room

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageType is the tag of an inbound message.
type MessageType string

const (
	MsgSessionStart  MessageType = "session_start"
	MsgSessionAction MessageType = "session_action"
	MsgSessionEnd    MessageType = "session_end"

	MsgHostJoined MessageType = "host_joined"
	MsgHostLeft   MessageType = "host_left"

	MsgAnalyticsUserJoined MessageType = "analytics_user_joined"
	MsgStoreEmote          MessageType = "store_emote"

	MsgUserMessage  MessageType = "user_message"
	MsgGetUserState MessageType = "get_user_state"
	MsgSetUserState MessageType = "set_user_state"

	MsgPathStart       MessageType = "path_start"
	MsgPathSegmentsAdd MessageType = "path_segments_add"
	MsgPathEnd         MessageType = "path_end"

	MsgSceneLoadRequest         MessageType = "scene_load_request"
	MsgSceneAddPresetRequest    MessageType = "scene_add_preset_request"
	MsgSceneClonePresetRequest  MessageType = "scene_clone_preset_request"
	MsgSceneChangePreset        MessageType = "scene_change_preset"
	MsgSceneDeletePresetRequest MessageType = "scene_delete_preset_request"
	MsgSceneDelete              MessageType = "scene_delete"

	MsgModeratorMessage MessageType = "scene_moderator_message"
	MsgModeratorCrash   MessageType = "scene_moderator_crash"

	MsgPresetUpdate  MessageType = "scene_preset_update"
	MsgSettingUpdate MessageType = "scene_setting_update"
	MsgVideoUpdate   MessageType = "scene_video_update"
	MsgSoundLocator  MessageType = "scene_sound_locator"

	MsgGiveawayClaim MessageType = "giveaway_claim"
)

// Outbound events that are not echoes of an inbound tag.
const (
	EventSessionStarted        = "session_started"
	EventVideoStatus           = "scene_video_status"
	EventGetUserStateResponse  = "get_user_state_response"
	EventSetUserStateResponse  = "set_user_state_response"
	EventPathStarted           = "path_started"
	EventPathSegmentsAdded     = "path_segments_added"
	EventSceneLoadResponse     = "scene_load_response"
	EventAddPresetResponse     = "scene_add_preset_response"
	EventClonePresetResponse   = "scene_clone_preset_response"
	EventDeletePresetResponse  = "scene_delete_preset_response"
	EventGiveawayClaimResponse = "giveaway_claim_response"
)

// Message is one inbound message. It keeps the sender's fields as they arrived
// so a broadcast echoes them unchanged, plus whatever a handler attaches.
type Message struct {
	Type   MessageType
	fields map[string]json.RawMessage
}

// NewMessage parses the data of an envelope. An empty or null payload gives a
// message without fields; anything else must be a JSON object.
func NewMessage(t MessageType, data []byte) (*Message, error) {
	m := &Message{Type: t, fields: make(map[string]json.RawMessage)}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return m, nil
	}
	if err := json.Unmarshal(data, &m.fields); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return m, nil
}

// Decode unmarshals the whole payload into v.
func (m *Message) Decode(v any) error {
	raw, err := json.Marshal(m.fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// Has reports whether key is present and not null.
func (m *Message) Has(key string) bool {
	raw, ok := m.fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Raw returns the undecoded value of key.
func (m *Message) Raw(key string) json.RawMessage {
	return m.fields[key]
}

// Attach sets key on the outgoing form of the message.
func (m *Message) Attach(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("attach %s: %w", key, err)
	}
	m.fields[key] = raw
	return nil
}

func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.fields)
}
