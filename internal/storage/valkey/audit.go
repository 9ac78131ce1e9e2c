package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	vk "github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
)

// AuditLog stores each target's root snapshot as a string key and its
// entries as a list, oldest first.
type AuditLog struct {
	client vk.Client
}

func NewAuditLog(client vk.Client) *AuditLog {
	return &AuditLog{client: client}
}

func (l *AuditLog) Append(ctx context.Context, entry models.AuditEntry, snapshot any) (models.AuditEntry, error) {
	if entry.TargetID == "" {
		return models.AuditEntry{}, fmt.Errorf("audit entry without target")
	}
	now := time.Now().UTC()

	candidate, err := json.Marshal(models.AuditRoot{ID: uuid.NewString(), TargetID: entry.TargetID, Snapshot: snapshot, Timestamp: now})
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("encode history root: %w", err)
	}
	rootKey := historyRootKey(entry.TargetID)
	resps := l.client.DoMulti(ctx,
		l.client.B().Set().Key(rootKey).Value(string(candidate)).Nx().Build(),
		l.client.B().Get().Key(rootKey).Build(),
	)
	if err := resps[0].Error(); err != nil && !vk.IsValkeyNil(err) {
		return models.AuditEntry{}, fmt.Errorf("write history root %s: %w", entry.TargetID, err)
	}
	stored, err := resps[1].ToString()
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("read history root %s: %w", entry.TargetID, err)
	}
	var root models.AuditRoot
	if err := json.Unmarshal([]byte(stored), &root); err != nil {
		return models.AuditEntry{}, fmt.Errorf("decode history root %s: %w", entry.TargetID, err)
	}

	entry.ID = uuid.NewString()
	entry.RootID = root.ID
	entry.Timestamp = now
	raw, err := json.Marshal(entry)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("encode history entry: %w", err)
	}
	if err := l.client.Do(ctx, l.client.B().Rpush().Key(historyEntriesKey(entry.TargetID)).Element(string(raw)).Build()).Error(); err != nil {
		return models.AuditEntry{}, fmt.Errorf("append history %s: %w", entry.TargetID, err)
	}
	return entry, nil
}

func (l *AuditLog) Entries(ctx context.Context, targetID string) ([]models.AuditEntry, error) {
	items, err := l.client.Do(ctx, l.client.B().Lrange().Key(historyEntriesKey(targetID)).Start(0).Stop(-1).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", targetID, err)
	}
	entries := make([]models.AuditEntry, 0, len(items))
	for _, item := range items {
		var e models.AuditEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode history %s: %w", targetID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *AuditLog) Root(ctx context.Context, targetID string) (*models.AuditRoot, error) {
	raw, err := l.client.Do(ctx, l.client.B().Get().Key(historyRootKey(targetID)).Build()).ToString()
	if vk.IsValkeyNil(err) {
		return nil, fmt.Errorf("history %s: %w", targetID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read history root %s: %w", targetID, err)
	}
	var root models.AuditRoot
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("decode history root %s: %w", targetID, err)
	}
	return &root, nil
}
