// Package audit records who changed what in a scene.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
)

// Change describes one audited action.
type Change struct {
	Action   string
	Element  string
	Property string
	Ref      string
}

// Recorder appends entries to a scene's history chain.
type Recorder struct {
	Log    storage.AuditLog
	Logger *slog.Logger
}

func NewRecorder(log storage.AuditLog, logger *slog.Logger) *Recorder {
	return &Recorder{Log: log, Logger: logger}
}

// Record appends one entry for actor to the history of sceneID. The snapshot is
// only stored when this entry starts the chain.
func (r *Recorder) Record(ctx context.Context, actor models.Identity, sceneID string, c Change, snapshot any) (models.AuditEntry, error) {
	who := models.Project(actor)
	entry, err := r.Log.Append(ctx, models.AuditEntry{
		TargetID:         sceneID,
		ActorUserID:      who.ID,
		ActorDisplayName: who.DisplayName,
		Action:           c.Action,
		Element:          c.Element,
		Property:         c.Property,
		Ref:              c.Ref,
	}, snapshot)
	if err != nil {
		r.Logger.Error("[Audit] Failed to update history", "sceneId", sceneID, "action", c.Action, "error", err)
		return models.AuditEntry{}, fmt.Errorf("append history for %s: %w", sceneID, err)
	}
	r.Logger.Debug("[Audit] Recorded", "sceneId", sceneID, "action", c.Action, "element", c.Element, "user", who.DisplayName)
	return entry, nil
}

// History is a chain as served to clients.
type History struct {
	Root    *models.AuditRoot   `json:"root"`
	Entries []models.AuditEntry `json:"updates"`
}

// History loads the chain of sceneID. A scene without history returns ErrNotFound.
func (r *Recorder) History(ctx context.Context, sceneID string) (*History, error) {
	root, err := r.Log.Root(ctx, sceneID)
	if err != nil {
		return nil, fmt.Errorf("load history root: %w", err)
	}
	entries, err := r.Log.Entries(ctx, sceneID)
	if err != nil {
		return nil, fmt.Errorf("load history entries: %w", err)
	}
	return &History{Root: root, Entries: entries}, nil
}
