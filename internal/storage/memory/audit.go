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

type chain struct {
	root    models.AuditRoot
	entries []models.AuditEntry
}

// AuditLog is an append-only in-memory history store.
type AuditLog struct {
	mu     sync.RWMutex
	chains map[string]*chain // targetID -> chain
	now    func() time.Time
}

func NewAuditLog() *AuditLog {
	return &AuditLog{chains: make(map[string]*chain), now: time.Now}
}

func (l *AuditLog) Append(_ context.Context, entry models.AuditEntry, snapshot any) (models.AuditEntry, error) {
	if entry.TargetID == "" {
		return models.AuditEntry{}, fmt.Errorf("audit entry without target")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	c, ok := l.chains[entry.TargetID]
	if !ok {
		c = &chain{root: models.AuditRoot{ID: uuid.NewString(), TargetID: entry.TargetID, Snapshot: snapshot, Timestamp: now}}
		l.chains[entry.TargetID] = c
	}
	// entries stay totally ordered even if the clock steps backwards
	if n := len(c.entries); n > 0 && !now.After(c.entries[n-1].Timestamp) {
		now = c.entries[n-1].Timestamp.Add(time.Nanosecond)
	}
	entry.ID = uuid.NewString()
	entry.RootID = c.root.ID
	entry.Timestamp = now
	c.entries = append(c.entries, entry)
	return entry, nil
}

func (l *AuditLog) Entries(_ context.Context, targetID string) ([]models.AuditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.chains[targetID]
	if !ok {
		return []models.AuditEntry{}, nil
	}
	return slices.Clone(c.entries), nil
}

func (l *AuditLog) Root(_ context.Context, targetID string) (*models.AuditRoot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.chains[targetID]
	if !ok {
		return nil, fmt.Errorf("history %s: %w", targetID, storage.ErrNotFound)
	}
	root := c.root
	return &root, nil
}
