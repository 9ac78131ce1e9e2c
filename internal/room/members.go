package room

import (
	"slices"
	"time"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

// Sender is a connection the room can push events to. Send must not block.
type Sender interface {
	ID() string
	Send(event string, payload any) error
}

// MemberState tracks a connection through its life in a room.
type MemberState int

const (
	StateUnauthenticated MemberState = iota
	StateJoined
	StateClosed
)

func (s MemberState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Member is one connection in a room.
type Member struct {
	Conn     Sender
	Identity models.Identity
	State    MemberState
	JoinedAt time.Time

	ended bool // session record already closed by session_end
}

func (m *Member) ID() string { return m.Conn.ID() }

func (m *Member) SceneID() string {
	if m.Identity == nil {
		return ""
	}
	return m.Identity.Scene()
}

// Members indexes a room's connections by connection id and by scene id.
// It is owned by the room loop.
type Members struct {
	byID    map[string]*Member
	byScene map[string]map[string]*Member
}

func NewMembers() *Members {
	return &Members{
		byID:    make(map[string]*Member),
		byScene: make(map[string]map[string]*Member),
	}
}

// Add indexes m, replacing any member with the same connection id.
func (ms *Members) Add(m *Member) {
	if old, ok := ms.byID[m.ID()]; ok {
		ms.unindex(old)
	}
	ms.byID[m.ID()] = m
	scene := m.SceneID()
	if ms.byScene[scene] == nil {
		ms.byScene[scene] = make(map[string]*Member)
	}
	ms.byScene[scene][m.ID()] = m
}

// Remove drops the member with connection id and returns it.
func (ms *Members) Remove(id string) (*Member, bool) {
	m, ok := ms.byID[id]
	if !ok {
		return nil, false
	}
	ms.unindex(m)
	return m, true
}

func (ms *Members) unindex(m *Member) {
	delete(ms.byID, m.ID())
	scene := m.SceneID()
	delete(ms.byScene[scene], m.ID())
	if len(ms.byScene[scene]) == 0 {
		delete(ms.byScene, scene)
	}
}

func (ms *Members) Get(id string) (*Member, bool) {
	m, ok := ms.byID[id]
	return m, ok
}

func (ms *Members) Len() int { return len(ms.byID) }

// CountScene returns how many members are scoped to sceneID.
func (ms *Members) CountScene(sceneID string) int { return len(ms.byScene[sceneID]) }

// DeliverToScene sends event to every joined member scoped to sceneID, skipping
// the connection ids in except. It returns how many sends succeeded.
func (ms *Members) DeliverToScene(sceneID, event string, payload any, except ...string) int {
	if sceneID == "" {
		return 0
	}
	sent := 0
	for id, m := range ms.byScene[sceneID] {
		if m.State != StateJoined || slices.Contains(except, id) {
			continue
		}
		if m.Conn.Send(event, payload) == nil {
			sent++
		}
	}
	return sent
}

// Broadcast sends event to every joined member regardless of scene.
func (ms *Members) Broadcast(event string, payload any) int {
	sent := 0
	for _, m := range ms.byID {
		if m.State == StateJoined && m.Conn.Send(event, payload) == nil {
			sent++
		}
	}
	return sent
}

// Counts returns the number of joined members per identity kind.
func (ms *Members) Counts() map[models.SessionKind]int {
	out := make(map[models.SessionKind]int)
	for _, m := range ms.byID {
		if m.Identity != nil {
			out[m.Identity.Kind()]++
		}
	}
	return out
}
