package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
	"github.com/google/uuid"
)

func (s *SceneStore) CreateElement(_ context.Context, presetID string, el models.SceneElement) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	preset, ok := s.presets[presetID]
	if !ok {
		return "", fmt.Errorf("preset %s: %w", presetID, storage.ErrNotFound)
	}
	if !el.Kind.Valid() {
		return "", fmt.Errorf("unknown element kind %q", el.Kind)
	}
	if el.ID == "" {
		el.ID = uuid.NewString()
	}
	if _, exists := s.elements[el.ID]; exists {
		return "", fmt.Errorf("element %s already exists", el.ID)
	}
	el.PresetID = presetID
	el.Instances = slices.Clone(el.Instances)
	for i := range el.Instances {
		if el.Instances[i].ID == "" {
			el.Instances[i].ID = uuid.NewString()
		}
		el.Instances[i].ElementID = el.ID
	}
	s.elements[el.ID] = &el
	preset.Elements = append(preset.Elements, el.ID)
	return presetID, nil
}

// UpdateElement replaces the element's own fields. Instances are managed through the
// instance operations and are left untouched.
func (s *SceneStore) UpdateElement(_ context.Context, presetID string, el models.SceneElement, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.elementLocked(presetID, el.ID)
	if err != nil {
		return "", err
	}
	existing.Name = el.Name
	existing.Enabled = el.Enabled
	existing.Properties = el.Properties
	return presetID, nil
}

func (s *SceneStore) DeleteElement(_ context.Context, presetID, elementID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.elementLocked(presetID, elementID); err != nil {
		return "", err
	}
	preset := s.presets[presetID]
	preset.Elements = slices.DeleteFunc(preset.Elements, func(id string) bool { return id == elementID })
	delete(s.elements, elementID)
	return presetID, nil
}

func (s *SceneStore) AddInstance(_ context.Context, presetID, elementID string, inst models.SceneElementInstance) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.elementLocked(presetID, elementID)
	if err != nil {
		return "", err
	}
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if slices.ContainsFunc(el.Instances, func(i models.SceneElementInstance) bool { return i.ID == inst.ID }) {
		return "", fmt.Errorf("instance %s already exists", inst.ID)
	}
	inst.ElementID = elementID
	el.Instances = append(el.Instances, inst)
	return presetID, nil
}

func (s *SceneStore) UpdateInstance(_ context.Context, presetID, elementID string, inst models.SceneElementInstance, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.elementLocked(presetID, elementID)
	if err != nil {
		return "", err
	}
	idx := slices.IndexFunc(el.Instances, func(i models.SceneElementInstance) bool { return i.ID == inst.ID })
	if idx < 0 {
		return "", fmt.Errorf("instance %s: %w", inst.ID, storage.ErrNotFound)
	}
	inst.ElementID = elementID
	el.Instances[idx] = inst
	return presetID, nil
}

func (s *SceneStore) RemoveInstance(_ context.Context, presetID, elementID, instanceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.elementLocked(presetID, elementID)
	if err != nil {
		return "", err
	}
	before := len(el.Instances)
	el.Instances = slices.DeleteFunc(el.Instances, func(i models.SceneElementInstance) bool { return i.ID == instanceID })
	if len(el.Instances) == before {
		return "", fmt.Errorf("instance %s: %w", instanceID, storage.ErrNotFound)
	}
	return presetID, nil
}

// BuildPreset resolves every element of the preset into a PresetView.
func (s *SceneStore) BuildPreset(_ context.Context, presetID string) (*models.PresetView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	preset, ok := s.presets[presetID]
	if !ok {
		return nil, fmt.Errorf("preset %s: %w", presetID, storage.ErrNotFound)
	}

	view := &models.PresetView{
		ID:          preset.ID,
		SceneID:     preset.SceneID,
		Name:        preset.Name,
		Images:      []models.SceneElement{},
		Videos:      []models.VideoView{},
		NFTs:        []models.SceneElement{},
		Sounds:      []models.SceneElement{},
		Models:      []models.SceneElement{},
		Widgets:     []models.SceneElement{},
		ClaimPoints: []models.SceneElement{},
	}
	for _, id := range preset.Elements {
		el, ok := s.elements[id]
		if !ok {
			continue
		}
		c := *cloneElement(el)
		switch c.Kind {
		case models.ElementImage:
			view.Images = append(view.Images, c)
		case models.ElementVideo:
			view.Videos = append(view.Videos, models.VideoView{SceneElement: c})
		case models.ElementNFT:
			view.NFTs = append(view.NFTs, c)
		case models.ElementSound:
			view.Sounds = append(view.Sounds, c)
		case models.ElementModel:
			view.Models = append(view.Models, c)
		case models.ElementWidget:
			view.Widgets = append(view.Widgets, c)
		case models.ElementClaimPoint:
			view.ClaimPoints = append(view.ClaimPoints, c)
		}
	}
	return view, nil
}

func (s *SceneStore) elementLocked(presetID, elementID string) (*models.SceneElement, error) {
	if _, ok := s.presets[presetID]; !ok {
		return nil, fmt.Errorf("preset %s: %w", presetID, storage.ErrNotFound)
	}
	el, ok := s.elements[elementID]
	if !ok || el.PresetID != presetID {
		return nil, fmt.Errorf("element %s: %w", elementID, storage.ErrNotFound)
	}
	return el, nil
}
