// Package editor applies collaborative edits to scene presets and keeps the
// room's stream cache in step with the edited videos.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Vasu1712/scenyx-rooms/internal/audit"
	"github.com/Vasu1712/scenyx-rooms/internal/liveness"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
)

// Action is the verb of a preset update.
type Action string

const (
	ActionInit    Action = "init"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionTrigger Action = "trigger"
)

// ErrInvalidUpdate is returned for updates that cannot be dispatched.
var ErrInvalidUpdate = errors.New("invalid preset update")

// PresetUpdate is the payload of scene_preset_update.
type PresetUpdate struct {
	Action       Action                       `json:"action"`
	Property     string                       `json:"property,omitempty"`
	ID           string                       `json:"id,omitempty"`
	Element      models.ElementKind           `json:"element"`
	Instance     bool                         `json:"instance"`
	ElementData  *models.SceneElement         `json:"elementData,omitempty"`
	InstanceData *models.SceneElementInstance `json:"instanceData,omitempty"`
}

// Outcome is what an applied update contributes to the broadcast.
type Outcome struct {
	Preset *models.PresetView // nil for triggers
	User   models.UserProjection
	// Tracked is the number of stream records inserted for the preset's videos.
	Tracked int
}

// Coordinator applies preset edits.
type Coordinator struct {
	Scenes storage.SceneStore
	Audit  *audit.Recorder
	Log    *slog.Logger
}

// Apply runs one preset update for actor. On error nothing is broadcast; the
// store may have been mutated if the failure happened after dispatch.
func (c *Coordinator) Apply(ctx context.Context, actor *models.HostSession, req PresetUpdate, streams *liveness.Cache) (*Outcome, error) {
	out := &Outcome{User: models.Project(actor)}
	if req.Action == ActionTrigger {
		return out, nil
	}

	presetID, err := c.presetFor(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if presetID, err = c.dispatch(ctx, presetID, req); err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Action, target(req), err)
	}

	view, err := c.Scenes.BuildPreset(ctx, presetID)
	if err != nil {
		return nil, fmt.Errorf("rebuild preset %s: %w", presetID, err)
	}
	out.Preset = view

	if req.Element == models.ElementVideo && req.ElementData != nil && len(req.ElementData.Instances) > 0 {
		out.Tracked = retrack(streams, actor.SceneID, view)
		c.Log.Debug("[Editor] Re-tracked preset streams", "presetId", view.ID, "tracked", out.Tracked)
	}

	property := req.Property
	if property == "" {
		property = "preset"
	}
	c.Audit.Record(ctx, actor, actor.SceneID, audit.Change{
		Action:   string(req.Action),
		Element:  string(req.Element),
		Property: property,
		Ref:      req.ID,
	}, view)

	return out, nil
}

func (c *Coordinator) presetFor(ctx context.Context, actor *models.HostSession, req PresetUpdate) (string, error) {
	if req.ElementData != nil && req.ElementData.PresetID != "" {
		return req.ElementData.PresetID, nil
	}
	scene, err := c.Scenes.GetScene(ctx, actor.SceneID)
	if err != nil {
		return "", fmt.Errorf("resolve active preset: %w", err)
	}
	if scene.ActivePreset == "" {
		return "", fmt.Errorf("%w: scene %s has no active preset", ErrInvalidUpdate, scene.ID)
	}
	return scene.ActivePreset, nil
}

func (c *Coordinator) dispatch(ctx context.Context, presetID string, req PresetUpdate) (string, error) {
	if req.Instance {
		if req.InstanceData == nil {
			return "", fmt.Errorf("%w: missing instanceData", ErrInvalidUpdate)
		}
		elementID := req.InstanceData.ElementID
		if req.ElementData != nil && req.ElementData.ID != "" {
			elementID = req.ElementData.ID
		}
		switch req.Action {
		case ActionCreate:
			return c.Scenes.AddInstance(ctx, presetID, elementID, *req.InstanceData)
		case ActionUpdate:
			return c.Scenes.UpdateInstance(ctx, presetID, elementID, *req.InstanceData, req.Property)
		case ActionDelete:
			return c.Scenes.RemoveInstance(ctx, presetID, elementID, req.InstanceData.ID)
		}
		return "", fmt.Errorf("%w: action %q", ErrInvalidUpdate, req.Action)
	}

	if req.ElementData == nil {
		return "", fmt.Errorf("%w: missing elementData", ErrInvalidUpdate)
	}
	switch req.Action {
	case ActionCreate:
		el := *req.ElementData
		if el.Kind == "" {
			el.Kind = req.Element
		}
		return c.Scenes.CreateElement(ctx, presetID, el)
	case ActionUpdate:
		return c.Scenes.UpdateElement(ctx, presetID, *req.ElementData, req.Property)
	case ActionDelete:
		return c.Scenes.DeleteElement(ctx, presetID, req.ElementData.ID)
	}
	return "", fmt.Errorf("%w: action %q", ErrInvalidUpdate, req.Action)
}

// retrack replaces the preset's stream records with one unknown record per
// streamable video instance of the rebuilt view.
func retrack(streams *liveness.Cache, sceneID string, view *models.PresetView) int {
	streams.RemovePreset(view.ID)
	inserted := 0
	for _, inst := range view.StreamableInstances() {
		streams.Upsert(models.StreamRecord{
			ID:       inst.ID,
			URL:      inst.LiveSrc,
			Status:   models.StreamUnknown,
			SceneID:  sceneID,
			PresetID: view.ID,
		})
		inserted++
	}
	return inserted
}

func target(req PresetUpdate) string {
	if req.Instance {
		return string(req.Element) + " instance"
	}
	return string(req.Element)
}
