package editor

import (
	"context"
	"fmt"

	"github.com/Vasu1712/scenyx-rooms/internal/audit"
	"github.com/Vasu1712/scenyx-rooms/internal/liveness"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

// PresetChange is the result of a preset-level operation.
type PresetChange struct {
	Scene  *models.Scene         `json:"scene"`
	Preset *models.ScenePreset   `json:"preset,omitempty"`
	User   models.UserProjection `json:"user"`
}

func (c *Coordinator) AddPreset(ctx context.Context, actor *models.HostSession, name string) (*PresetChange, error) {
	scene, preset, err := c.Scenes.AddPreset(ctx, actor.SceneID, name)
	if err != nil {
		return nil, fmt.Errorf("add preset: %w", err)
	}
	c.Audit.Record(ctx, actor, actor.SceneID, audit.Change{Action: "create", Element: "scene", Property: "preset", Ref: preset.ID}, scene)
	return &PresetChange{Scene: scene, Preset: preset, User: models.Project(actor)}, nil
}

func (c *Coordinator) ClonePreset(ctx context.Context, actor *models.HostSession, presetID string) (*PresetChange, error) {
	scene, preset, err := c.Scenes.ClonePreset(ctx, actor.SceneID, presetID)
	if err != nil {
		return nil, fmt.Errorf("clone preset %s: %w", presetID, err)
	}
	c.Audit.Record(ctx, actor, actor.SceneID, audit.Change{Action: "clone", Element: "scene", Property: "preset", Ref: presetID}, scene)
	return &PresetChange{Scene: scene, Preset: preset, User: models.Project(actor)}, nil
}

// ChangePreset makes presetID the active preset of the actor's scene.
func (c *Coordinator) ChangePreset(ctx context.Context, actor *models.HostSession, presetID string) (*PresetChange, error) {
	scene, preset, err := c.Scenes.ChangePreset(ctx, actor.SceneID, presetID)
	if err != nil {
		return nil, fmt.Errorf("change preset to %s: %w", presetID, err)
	}
	c.Audit.Record(ctx, actor, actor.SceneID, audit.Change{Action: "update", Element: "scene", Property: "preset", Ref: presetID}, scene)
	return &PresetChange{Scene: scene, Preset: preset, User: models.Project(actor)}, nil
}

// DeletePreset removes a preset and stops tracking its streams.
func (c *Coordinator) DeletePreset(ctx context.Context, actor *models.HostSession, presetID string, streams *liveness.Cache) (*PresetChange, error) {
	scene, err := c.Scenes.DeletePreset(ctx, actor.SceneID, presetID)
	if err != nil {
		return nil, fmt.Errorf("delete preset %s: %w", presetID, err)
	}
	streams.RemovePreset(presetID)
	c.Audit.Record(ctx, actor, actor.SceneID, audit.Change{Action: "deleted", Element: "scene", Property: "preset", Ref: presetID}, scene)
	return &PresetChange{Scene: scene, User: models.Project(actor)}, nil
}

// PutSetting creates or updates a scene setting. It reports whether the
// setting was new to the scene.
func (c *Coordinator) PutSetting(ctx context.Context, actor *models.HostSession, setting models.SceneSetting) (bool, models.UserProjection, error) {
	created, err := c.Scenes.PutSetting(ctx, actor.SceneID, setting)
	if err != nil {
		return false, models.UserProjection{}, fmt.Errorf("put setting %s: %w", setting.Type, err)
	}
	action := "update"
	if created {
		action = "create"
	}
	c.Audit.Record(ctx, actor, actor.SceneID, audit.Change{Action: action, Element: "scene", Property: "setting", Ref: setting.ID}, setting)
	return created, models.Project(actor), nil
}

// ActiveView loads the scene's active preset and its moderation setting.
func (c *Coordinator) ActiveView(ctx context.Context, scene *models.Scene) (*models.PresetView, *models.SceneSetting, error) {
	if scene.ActivePreset == "" {
		return nil, nil, nil
	}
	view, err := c.Scenes.BuildPreset(ctx, scene.ActivePreset)
	if err != nil {
		return nil, nil, fmt.Errorf("build active preset: %w", err)
	}
	settings, err := c.Scenes.GetSettings(ctx, scene.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}
	for i := range settings {
		if settings[i].Type == models.SettingModeration {
			return view, &settings[i], nil
		}
	}
	return view, nil, nil
}
