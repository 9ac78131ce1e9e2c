package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
)

// ErrSceneOwnedElsewhere is returned when another node holds the scene's lease.
var ErrSceneOwnedElsewhere = errors.New("scene is hosted by another node")

// entry is a scene's slot in the manager. It is published before the lease
// claim finishes so the claim runs without holding the manager lock.
type entry struct {
	room    *Room
	cancel  context.CancelFunc
	active  int           // connections admitted or being admitted
	err     error         // claim failure, set before ready is closed
	ready   chan struct{} // closed once the claim has finished
	gone    chan struct{} // closed once the room stopped and its lease is released
	closing bool
}

func (e *entry) running() bool { return e.room != nil && !e.closing }

// Manager creates a room on a scene's first connection and stops it after the
// last one leaves. Rooms are leased through Presence so a scene runs on one node.
type Manager struct {
	svc      *Services
	presence storage.Presence
	nodeID   string
	ttl      time.Duration
	log      *slog.Logger

	base   context.Context
	mu     sync.Mutex
	rooms  map[string]*entry // sceneID -> room
	closed bool
}

// NewManager returns a manager whose rooms run under ctx.
func NewManager(ctx context.Context, svc *Services, presence storage.Presence, nodeID string, ttl time.Duration) *Manager {
	return &Manager{
		svc:      svc,
		presence: presence,
		nodeID:   nodeID,
		ttl:      ttl,
		log:      svc.Log.Room(),
		base:     ctx,
		rooms:    make(map[string]*entry),
	}
}

// Join admits an identity into the room of its scene, starting the room first
// when needed.
func (mg *Manager) Join(ctx context.Context, conn Sender, id models.Identity) (*Room, error) {
	sceneID := id.Scene()
	if sceneID == "" {
		return nil, fmt.Errorf("join: identity has no scene")
	}

	e, err := mg.acquire(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if err := e.room.Join(ctx, conn, id); err != nil {
		mg.release(sceneID, e)
		return nil, fmt.Errorf("join room %s: %w", sceneID, err)
	}
	return e.room, nil
}

// Leave removes a connection from a room and stops the room when it was the last.
func (mg *Manager) Leave(ctx context.Context, r *Room, connID string) {
	if _, err := r.Leave(ctx, connID); err != nil && !errors.Is(err, ErrRoomClosed) {
		mg.log.Warn("[Room] Leave failed", "sceneId", r.SceneID, "member", connID, "error", err)
	}
	mg.mu.Lock()
	e, ok := mg.rooms[r.SceneID]
	ok = ok && e.room == r
	mg.mu.Unlock()
	if ok {
		mg.release(r.SceneID, e)
	}
}

// acquire returns the running entry of sceneID with one more admitted
// connection. A scene whose room is still stopping is waited for, so the old
// room's lease release cannot drop the new room's lease.
func (mg *Manager) acquire(ctx context.Context, sceneID string) (*entry, error) {
	for {
		mg.mu.Lock()
		if mg.closed {
			mg.mu.Unlock()
			return nil, fmt.Errorf("join %s: %w", sceneID, ErrRoomClosed)
		}
		e, ok := mg.rooms[sceneID]
		switch {
		case ok && e.closing:
			mg.mu.Unlock()
			select {
			case <-e.gone:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		case ok:
			e.active++
			mg.mu.Unlock()
			<-e.ready
			if e.err != nil {
				return nil, e.err
			}
			return e, nil
		}

		e = &entry{active: 1, ready: make(chan struct{}), gone: make(chan struct{})}
		mg.rooms[sceneID] = e
		mg.mu.Unlock()
		if err := mg.claim(ctx, sceneID, e); err != nil {
			return nil, err
		}
		return e, nil
	}
}

// claim takes the lease for a freshly published entry and starts its room.
func (mg *Manager) claim(ctx context.Context, sceneID string, e *entry) error {
	owned, err := mg.presence.Claim(ctx, sceneID, mg.nodeID, mg.ttl)
	switch {
	case err != nil:
		err = fmt.Errorf("claim scene %s: %w", sceneID, err)
	case !owned:
		err = fmt.Errorf("claim scene %s: %w", sceneID, ErrSceneOwnedElsewhere)
	}

	mg.mu.Lock()
	if err != nil {
		e.err = err
		if mg.rooms[sceneID] == e {
			delete(mg.rooms, sceneID)
		}
		mg.mu.Unlock()
		close(e.ready)
		close(e.gone)
		return err
	}
	roomCtx, cancel := context.WithCancel(mg.base)
	e.room = New(sceneID, mg.svc)
	e.cancel = cancel
	go e.room.Run(roomCtx)
	mg.mu.Unlock()
	close(e.ready)

	mg.log.Info("[Room] Created", "sceneId", sceneID, "node", mg.nodeID)
	return nil
}

// release drops one admitted connection and tears the room down at zero.
func (mg *Manager) release(sceneID string, e *entry) {
	mg.mu.Lock()
	e.active--
	if e.active > 0 || e.closing || mg.rooms[sceneID] != e {
		mg.mu.Unlock()
		return
	}
	e.closing = true
	mg.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	mg.stop(ctx, sceneID, e)
}

// stop cancels a closing entry's room, releases the lease and only then
// removes the entry. The caller must have set e.closing.
func (mg *Manager) stop(ctx context.Context, sceneID string, e *entry) {
	e.cancel()
	select {
	case <-e.room.Done():
	case <-ctx.Done():
	}
	if err := mg.presence.Release(ctx, sceneID, mg.nodeID); err != nil {
		mg.log.Warn("[Room] Failed to release scene lease", "sceneId", sceneID, "error", err)
	}

	mg.mu.Lock()
	if mg.rooms[sceneID] == e {
		delete(mg.rooms, sceneID)
	}
	mg.mu.Unlock()
	close(e.gone)
	mg.log.Info("[Room] Disposed", "sceneId", sceneID)
}

// Room returns the running room of a scene.
func (mg *Manager) Room(sceneID string) (*Room, bool) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	e, ok := mg.rooms[sceneID]
	if !ok || !e.running() {
		return nil, false
	}
	return e.room, true
}

// Len returns the number of running rooms.
func (mg *Manager) Len() int {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	n := 0
	for _, e := range mg.rooms {
		if e.running() {
			n++
		}
	}
	return n
}

// RenewLeases refreshes the lease of every hosted scene until ctx is done.
func (mg *Manager) RenewLeases(ctx context.Context) {
	interval := mg.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mg.renew(ctx)
		}
	}
}

func (mg *Manager) renew(ctx context.Context) {
	mg.mu.Lock()
	scenes := make([]string, 0, len(mg.rooms))
	for sceneID, e := range mg.rooms {
		if e.running() {
			scenes = append(scenes, sceneID)
		}
	}
	mg.mu.Unlock()

	for _, sceneID := range scenes {
		owned, err := mg.presence.Claim(ctx, sceneID, mg.nodeID, mg.ttl)
		switch {
		case err != nil:
			mg.log.Warn("[Room] Failed to renew scene lease", "sceneId", sceneID, "error", err)
		case !owned:
			mg.log.Error("[Room] Lost scene lease to another node", "sceneId", sceneID)
		}
	}
}

// Shutdown stops every room and releases its lease. Joins after Shutdown fail.
func (mg *Manager) Shutdown(ctx context.Context) {
	mg.mu.Lock()
	mg.closed = true
	entries := make(map[string]*entry, len(mg.rooms))
	for sceneID, e := range mg.rooms {
		entries[sceneID] = e
	}
	mg.mu.Unlock()

	for sceneID, e := range entries {
		select {
		case <-e.ready:
		case <-ctx.Done():
			continue
		}
		mg.mu.Lock()
		owner := e.running()
		if owner {
			e.closing = true
		}
		mg.mu.Unlock()

		if owner {
			mg.stop(ctx, sceneID, e)
			continue
		}
		select {
		case <-e.gone:
		case <-ctx.Done():
		}
	}
	mg.log.Info("[Room] All rooms stopped", "count", len(entries))
}
