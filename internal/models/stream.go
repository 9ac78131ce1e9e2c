package models

// StreamStatus is the tri-state liveness of a video source.
type StreamStatus string

const (
	StreamUnknown StreamStatus = "unknown"
	StreamLive    StreamStatus = "live"
	StreamDown    StreamStatus = "down"
)

// StreamRecord is the cached liveness state of one video source URL inside a room.
// PresetID is empty for ad-hoc records created when a viewer session starts.
type StreamRecord struct {
	ID       string       `json:"id"` // Instance ID of the video placement
	URL      string       `json:"url"`
	Status   StreamStatus `json:"status"`
	SceneID  string       `json:"sceneId"`
	PresetID string       `json:"presetId,omitempty"`
}
