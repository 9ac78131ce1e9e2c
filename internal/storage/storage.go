// Package storage declares the collaborators the scene rooms depend on. Concrete
// implementations live in storage/memory (single process) and storage/valkey.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SessionStore creates and ends session records and tracks viewer paths.
type SessionStore interface {
	StartHostSession(ctx context.Context, s *models.HostSession) error
	EndHostSession(ctx context.Context, s *models.HostSession) error
	StartAnalyticsSession(ctx context.Context, s *models.AnalyticsSession) error
	EndAnalyticsSession(ctx context.Context, s *models.AnalyticsSession) error
	LogAction(ctx context.Context, action models.AnalyticsAction) error
	CreatePath(ctx context.Context, sessionID string) (pathID string, err error)
	ExtendPath(ctx context.Context, pathID string, segments []models.PathSegment) (added, total int, err error)
	ClosePath(ctx context.Context, pathID string) error
}

// ElementStore mutates the elements and instances of a preset. Every mutation
// returns the ID of the preset it touched.
type ElementStore interface {
	CreateElement(ctx context.Context, presetID string, el models.SceneElement) (string, error)
	UpdateElement(ctx context.Context, presetID string, el models.SceneElement, property string) (string, error)
	DeleteElement(ctx context.Context, presetID, elementID string) (string, error)
	AddInstance(ctx context.Context, presetID, elementID string, inst models.SceneElementInstance) (string, error)
	UpdateInstance(ctx context.Context, presetID, elementID string, inst models.SceneElementInstance, property string) (string, error)
	RemoveInstance(ctx context.Context, presetID, elementID, instanceID string) (string, error)
	BuildPreset(ctx context.Context, presetID string) (*models.PresetView, error)
}

// SceneStore reads scenes and manages their presets and settings.
type SceneStore interface {
	ElementStore

	GetScene(ctx context.Context, sceneID string) (*models.Scene, error)
	// ObtainScene returns the scene, creating it when missing, and records loc
	// when it is new or a newer build of a known spot.
	ObtainScene(ctx context.Context, sceneID string, loc models.Location) (*models.Scene, error)

	AddPreset(ctx context.Context, sceneID, name string) (*models.Scene, *models.ScenePreset, error)
	ClonePreset(ctx context.Context, sceneID, presetID string) (*models.Scene, *models.ScenePreset, error)
	ChangePreset(ctx context.Context, sceneID, presetID string) (*models.Scene, *models.ScenePreset, error)
	DeletePreset(ctx context.Context, sceneID, presetID string) (*models.Scene, error)

	GetSettings(ctx context.Context, sceneID string) ([]models.SceneSetting, error)
	// PutSetting stores the setting and reports whether it was newly attached to the scene.
	PutSetting(ctx context.Context, sceneID string, setting models.SceneSetting) (created bool, err error)
}

// AuditLog stores append-only history chains. The first Append for a target
// also writes the root snapshot.
type AuditLog interface {
	Append(ctx context.Context, entry models.AuditEntry, snapshot any) (models.AuditEntry, error)
	Entries(ctx context.Context, targetID string) ([]models.AuditEntry, error)
	Root(ctx context.Context, targetID string) (*models.AuditRoot, error)
}

// UserResolver looks up accounts.
type UserResolver interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// ObtainUserByWallet returns the account linked to wallet, creating a
	// pseudonymous one from fallback when none exists.
	ObtainUserByWallet(ctx context.Context, wallet string, fallback *models.User) (*models.User, error)
}

// UserStateStore is a per-scene key/value area scenes use to persist viewer-visible state.
type UserStateStore interface {
	GetUserState(ctx context.Context, sceneID, key string) (any, error)
	SetUserState(ctx context.Context, sceneID, key string, value any) error
}

// GiveawayStore allocates giveaway items.
type GiveawayStore interface {
	Claim(ctx context.Context, req models.ClaimRequest) (models.ClaimResult, error)
}

// Presence leases scenes to the process that hosts their room.
type Presence interface {
	// Claim takes or refreshes the lease on sceneID for nodeID. It reports false
	// when another node holds a live lease.
	Claim(ctx context.Context, sceneID, nodeID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, sceneID, nodeID string) error
}
