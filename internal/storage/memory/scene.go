package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
	"github.com/google/uuid"
)

// SceneStore keeps scenes, presets, elements and settings in memory.
type SceneStore struct {
	mu        sync.RWMutex
	scenes    map[string]*models.Scene        // sceneID -> scene
	presets   map[string]*models.ScenePreset  // presetID -> preset
	elements  map[string]*models.SceneElement // elementID -> element
	settings  map[string]*models.SceneSetting // settingID -> setting
	userState map[string]map[string]any       // sceneID -> key -> value
}

// NewSceneStore creates an empty SceneStore.
func NewSceneStore() *SceneStore {
	return &SceneStore{
		scenes:    make(map[string]*models.Scene),
		presets:   make(map[string]*models.ScenePreset),
		elements:  make(map[string]*models.SceneElement),
		settings:  make(map[string]*models.SceneSetting),
		userState: make(map[string]map[string]any),
	}
}

// CreateScene creates a scene with one empty preset and makes it active.
func (s *SceneStore) CreateScene(sceneID, name, creatorID string) *models.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSceneLocked(sceneID, name, creatorID)
}

func (s *SceneStore) createSceneLocked(sceneID, name, creatorID string) *models.Scene {
	if sceneID == "" {
		sceneID = uuid.NewString()
	}
	preset := &models.ScenePreset{ID: uuid.NewString(), SceneID: sceneID, Name: "Signature Arrangement"}
	scene := &models.Scene{
		ID:           sceneID,
		Name:         name,
		CreatorID:    creatorID,
		ActivePreset: preset.ID,
		Presets:      []string{preset.ID},
		Settings:     []string{},
		Locations:    []models.Location{},
		UpdatedAt:    time.Now().Unix(),
	}
	s.scenes[sceneID] = scene
	s.presets[preset.ID] = preset
	return scene
}

func (s *SceneStore) GetScene(_ context.Context, sceneID string) (*models.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return nil, fmt.Errorf("scene %s: %w", sceneID, storage.ErrNotFound)
	}
	return cloneScene(scene), nil
}

func (s *SceneStore) ObtainScene(_ context.Context, sceneID string, loc models.Location) (*models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scene, ok := s.scenes[sceneID]
	if !ok {
		scene = s.createSceneLocked(sceneID, "", "")
	}
	if loc.World == "" {
		return cloneScene(scene), nil
	}

	idx := slices.IndexFunc(scene.Locations, loc.SameSpot)
	switch {
	case idx < 0:
		scene.Locations = append(scene.Locations, loc)
	case scene.Locations[idx].Version != loc.Version:
		// replace the stale build of this spot
		scene.Locations = append(slices.Delete(scene.Locations, idx, idx+1), loc)
	}
	scene.UpdatedAt = time.Now().Unix()
	return cloneScene(scene), nil
}

func (s *SceneStore) AddPreset(_ context.Context, sceneID, name string) (*models.Scene, *models.ScenePreset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return nil, nil, fmt.Errorf("scene %s: %w", sceneID, storage.ErrNotFound)
	}
	if name == "" {
		name = fmt.Sprintf("Preset %d", len(scene.Presets)+1)
	}
	preset := &models.ScenePreset{ID: uuid.NewString(), SceneID: sceneID, Name: name, Elements: []string{}}
	s.presets[preset.ID] = preset
	scene.Presets = append(scene.Presets, preset.ID)
	scene.UpdatedAt = time.Now().Unix()
	return cloneScene(scene), clonePreset(preset), nil
}

func (s *SceneStore) ClonePreset(_ context.Context, sceneID, presetID string) (*models.Scene, *models.ScenePreset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return nil, nil, fmt.Errorf("scene %s: %w", sceneID, storage.ErrNotFound)
	}
	src, ok := s.presets[presetID]
	if !ok || src.SceneID != sceneID {
		return nil, nil, fmt.Errorf("preset %s: %w", presetID, storage.ErrNotFound)
	}

	clone := &models.ScenePreset{ID: uuid.NewString(), SceneID: sceneID, Name: src.Name + " (copy)"}
	for _, elementID := range src.Elements {
		el, ok := s.elements[elementID]
		if !ok {
			continue
		}
		copied := cloneElement(el)
		copied.ID = uuid.NewString()
		copied.PresetID = clone.ID
		for i := range copied.Instances {
			copied.Instances[i].ID = uuid.NewString()
			copied.Instances[i].ElementID = copied.ID
		}
		s.elements[copied.ID] = copied
		clone.Elements = append(clone.Elements, copied.ID)
	}
	s.presets[clone.ID] = clone
	scene.Presets = append(scene.Presets, clone.ID)
	scene.UpdatedAt = time.Now().Unix()
	return cloneScene(scene), clonePreset(clone), nil
}

func (s *SceneStore) ChangePreset(_ context.Context, sceneID, presetID string) (*models.Scene, *models.ScenePreset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return nil, nil, fmt.Errorf("scene %s: %w", sceneID, storage.ErrNotFound)
	}
	preset, ok := s.presets[presetID]
	if !ok || preset.SceneID != sceneID {
		return nil, nil, fmt.Errorf("preset %s: %w", presetID, storage.ErrNotFound)
	}
	scene.ActivePreset = presetID
	scene.UpdatedAt = time.Now().Unix()
	return cloneScene(scene), clonePreset(preset), nil
}

func (s *SceneStore) DeletePreset(_ context.Context, sceneID, presetID string) (*models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return nil, fmt.Errorf("scene %s: %w", sceneID, storage.ErrNotFound)
	}
	idx := slices.Index(scene.Presets, presetID)
	if idx < 0 {
		return nil, fmt.Errorf("preset %s: %w", presetID, storage.ErrNotFound)
	}
	scene.Presets = slices.Delete(scene.Presets, idx, idx+1)
	if scene.ActivePreset == presetID {
		scene.ActivePreset = ""
		if len(scene.Presets) > 0 {
			scene.ActivePreset = scene.Presets[0]
		}
	}
	s.deletePresetLocked(presetID)
	scene.UpdatedAt = time.Now().Unix()
	return cloneScene(scene), nil
}

func (s *SceneStore) deletePresetLocked(presetID string) {
	preset, ok := s.presets[presetID]
	if !ok {
		return
	}
	for _, elementID := range preset.Elements {
		delete(s.elements, elementID)
	}
	delete(s.presets, presetID)
}

func (s *SceneStore) GetSettings(_ context.Context, sceneID string) ([]models.SceneSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return nil, fmt.Errorf("scene %s: %w", sceneID, storage.ErrNotFound)
	}
	out := make([]models.SceneSetting, 0, len(scene.Settings))
	for _, id := range scene.Settings {
		if setting, ok := s.settings[id]; ok {
			out = append(out, *setting)
		}
	}
	return out, nil
}

func (s *SceneStore) PutSetting(_ context.Context, sceneID string, setting models.SceneSetting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[sceneID]
	if !ok {
		return false, fmt.Errorf("scene %s: %w", sceneID, storage.ErrNotFound)
	}
	if setting.ID == "" {
		setting.ID = uuid.NewString()
	}
	created := !slices.Contains(scene.Settings, setting.ID)
	if created {
		scene.Settings = append(scene.Settings, setting.ID)
	}
	s.settings[setting.ID] = &setting
	scene.UpdatedAt = time.Now().Unix()
	return created, nil
}

func (s *SceneStore) GetUserState(_ context.Context, sceneID, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userState[sceneID][key], nil
}

func (s *SceneStore) SetUserState(_ context.Context, sceneID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userState[sceneID] == nil {
		s.userState[sceneID] = make(map[string]any)
	}
	s.userState[sceneID][key] = value
	return nil
}

func cloneScene(s *models.Scene) *models.Scene {
	c := *s
	c.Presets = slices.Clone(s.Presets)
	c.Settings = slices.Clone(s.Settings)
	c.Locations = slices.Clone(s.Locations)
	return &c
}

func clonePreset(p *models.ScenePreset) *models.ScenePreset {
	c := *p
	c.Elements = slices.Clone(p.Elements)
	return &c
}

func cloneElement(e *models.SceneElement) *models.SceneElement {
	c := *e
	c.Instances = slices.Clone(e.Instances)
	return &c
}
