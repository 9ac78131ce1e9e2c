package models

// ElementKind is the type tag of a scene element.
type ElementKind string

const (
	ElementImage      ElementKind = "image"
	ElementVideo      ElementKind = "video"
	ElementNFT        ElementKind = "nft"
	ElementSound      ElementKind = "sound"
	ElementModel      ElementKind = "model"
	ElementWidget     ElementKind = "widget"
	ElementClaimPoint ElementKind = "claimpoint"
)

// Valid reports whether k is one of the known element kinds.
func (k ElementKind) Valid() bool {
	switch k {
	case ElementImage, ElementVideo, ElementNFT, ElementSound, ElementModel, ElementWidget, ElementClaimPoint:
		return true
	}
	return false
}

// Location is a place in a metaverse world where a scene has been deployed.
type Location struct {
	World       string   `json:"world"`
	Location    string   `json:"location,omitempty"`
	Coordinates [2]int   `json:"coordinates"`
	Parcels     []string `json:"parcels,omitempty"`
	Version     string   `json:"version,omitempty"` // Integration build the viewer is running
}

// SameSpot reports whether two locations point at the same parcel group, ignoring the version.
func (l Location) SameSpot(other Location) bool {
	return l.World == other.World &&
		l.Location == other.Location &&
		l.Coordinates == other.Coordinates &&
		len(l.Parcels) == len(other.Parcels)
}

// Scene represents an editable virtual space with a set of presets, one of which is active.
type Scene struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	CreatorID    string     `json:"creatorId"`
	ActivePreset string     `json:"scenePreset"`       // ID of the preset currently rendered
	Presets      []string   `json:"presets"`           // Preset IDs, in creation order
	Settings     []string   `json:"settings"`          // Setting IDs
	Locations    []Location `json:"locations"`         // Where viewers have loaded this scene from
	ActiveUsers  int        `json:"activeUsers"`       // Connected members, filled from the room at read time
	UpdatedAt    int64      `json:"updatedAt,omitempty"`
}

// ScenePreset is a named configuration of elements belonging to a scene.
type ScenePreset struct {
	ID       string   `json:"id"`
	SceneID  string   `json:"sceneId"`
	Name     string   `json:"name"`
	Elements []string `json:"elements"` // Element IDs, ordered
}

// SceneElement is a typed template object; its instances are placements of it.
type SceneElement struct {
	ID         string                 `json:"id"`
	PresetID   string                 `json:"presetId,omitempty"`
	Kind       ElementKind            `json:"kind"`
	Name       string                 `json:"name,omitempty"`
	Enabled    bool                   `json:"enabled"`
	Properties map[string]any         `json:"properties,omitempty"`
	Instances  []SceneElementInstance `json:"instances"`
}

// SceneElementInstance is one placement of an element. Only video instances use the live-stream fields.
type SceneElementInstance struct {
	ID               string         `json:"id"`
	ElementID        string         `json:"elementId,omitempty"`
	Name             string         `json:"name,omitempty"`
	Enabled          bool           `json:"enabled"`
	LiveSrc          string         `json:"liveSrc,omitempty"`
	EnableLiveStream bool           `json:"enableLiveStream,omitempty"`
	Transform        map[string]any `json:"transform,omitempty"`
	Properties       map[string]any `json:"properties,omitempty"`
}

// Streamable reports whether the instance should be tracked by the liveness scheduler.
func (i SceneElementInstance) Streamable() bool {
	return i.Enabled && i.EnableLiveStream && i.LiveSrc != ""
}

// SettingType names a scene setting.
type SettingType string

const SettingModeration SettingType = "moderation"

// SceneSetting is a typed settings blob attached to a scene.
type SceneSetting struct {
	ID       string         `json:"id"`
	Type     SettingType    `json:"type"`
	Settings map[string]any `json:"settingData,omitempty"`
}

// PresetView is the denormalized, export-ready form of a preset: every element resolved and grouped by kind.
type PresetView struct {
	ID          string         `json:"id"`
	SceneID     string         `json:"sceneId"`
	Name        string         `json:"name"`
	Images      []SceneElement `json:"images"`
	Videos      []VideoView    `json:"videos"`
	NFTs        []SceneElement `json:"nfts"`
	Sounds      []SceneElement `json:"sounds"`
	Models      []SceneElement `json:"models"`
	Widgets     []SceneElement `json:"widgets"`
	ClaimPoints []SceneElement `json:"claimpoints"`
}

// VideoView is a video element in a PresetView, annotated with the liveness of its stream instances.
type VideoView struct {
	SceneElement
	IsLive map[string]StreamStatus `json:"isLive,omitempty"` // instance ID -> last known status
}

// StreamableInstances returns every video instance of the preset that should be probed.
func (p *PresetView) StreamableInstances() []SceneElementInstance {
	var out []SceneElementInstance
	for _, v := range p.Videos {
		for _, inst := range v.Instances {
			if inst.Streamable() {
				out = append(out, inst)
			}
		}
	}
	return out
}
