package memory

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	nodeID  string
	expires time.Time
}

// Presence is a single-process scene lease table. It is what the service uses
// when no shared Valkey instance is configured.
type Presence struct {
	mu     sync.Mutex
	leases map[string]lease // sceneID -> lease
	now    func() time.Time
}

func NewPresence() *Presence {
	return &Presence{leases: make(map[string]lease), now: time.Now}
}

func (p *Presence) Claim(_ context.Context, sceneID, nodeID string, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if cur, ok := p.leases[sceneID]; ok && cur.nodeID != nodeID && now.Before(cur.expires) {
		return false, nil
	}
	p.leases[sceneID] = lease{nodeID: nodeID, expires: now.Add(ttl)}
	return true, nil
}

func (p *Presence) Release(_ context.Context, sceneID, nodeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.leases[sceneID]; ok && cur.nodeID == nodeID {
		delete(p.leases, sceneID)
	}
	return nil
}
