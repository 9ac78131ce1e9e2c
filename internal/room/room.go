// Package room runs one actor per scene. A room owns its members, its stream
// cache and the liveness schedule, and handles every inbound message of the
// scene on a single goroutine.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vasu1712/scenyx-rooms/internal/audit"
	"github.com/Vasu1712/scenyx-rooms/internal/auth"
	"github.com/Vasu1712/scenyx-rooms/internal/editor"
	"github.com/Vasu1712/scenyx-rooms/internal/liveness"
	"github.com/Vasu1712/scenyx-rooms/internal/logging"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
)

// ErrRoomClosed is returned when a room stopped before it could take an event.
var ErrRoomClosed = errors.New("room closed")

const stopTimeout = 10 * time.Second

// Services are the collaborators shared by every room of the process.
type Services struct {
	Auth      *auth.Authenticator
	Scenes    storage.SceneStore
	UserState storage.UserStateStore
	Sessions  storage.SessionStore
	Users     storage.UserResolver
	Giveaways storage.GiveawayStore
	Editor    *editor.Coordinator
	Audit     *audit.Recorder
	Checker   liveness.Checker
	Router    *Router
	Log       *logging.Logger

	TickInterval time.Duration
}

type joinRequest struct {
	member *Member
	reply  chan error
}

type leaveRequest struct {
	id    string
	reply chan int
}

type inbound struct {
	from string
	msg  *Message
}

type probeResult struct {
	record models.StreamRecord
	result liveness.ProbeResult
}

// Snapshot is a point-in-time view of a room for diagnostics.
type Snapshot struct {
	SceneID   string                     `json:"sceneId"`
	Members   int                        `json:"members"`
	ByKind    map[models.SessionKind]int `json:"byKind"`
	Streams   []models.StreamRecord      `json:"streams"`
	Cursor    int                        `json:"cursor"`
	Probing   bool                       `json:"probing"`
	StartedAt time.Time                  `json:"startedAt"`
}

// Room is the actor for one scene.
type Room struct {
	SceneID string

	svc     *Services
	log     *slog.Logger
	liveLog *slog.Logger

	// Owned by the loop.
	members *Members
	streams liveness.Cache
	emotes  map[string]json.RawMessage // userID -> emote
	probing bool
	started time.Time

	join      chan joinRequest
	leave     chan leaveRequest
	deliver   chan inbound
	results   chan probeResult
	batchDone chan struct{}
	snapshot  chan chan Snapshot
	done      chan struct{}
}

func New(sceneID string, svc *Services) *Room {
	return &Room{
		SceneID:   sceneID,
		svc:       svc,
		log:       svc.Log.Room().With("sceneId", sceneID),
		liveLog:   svc.Log.Liveness().With("sceneId", sceneID),
		members:   NewMembers(),
		emotes:    make(map[string]json.RawMessage),
		join:      make(chan joinRequest),
		leave:     make(chan leaveRequest),
		deliver:   make(chan inbound, 64),
		results:   make(chan probeResult),
		batchDone: make(chan struct{}),
		snapshot:  make(chan chan Snapshot),
		done:      make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)

	interval := r.svc.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.started = time.Now()
	r.log.Info("[Room] Started")
	for {
		select {
		case <-ctx.Done():
			n := r.disconnectAll()
			r.log.Info("[Room] Stopped", "disconnected", n)
			return
		case req := <-r.join:
			req.reply <- r.handleJoin(ctx, req.member)
		case req := <-r.leave:
			req.reply <- r.handleLeave(ctx, req.id)
		case in := <-r.deliver:
			r.handleInbound(ctx, in)
		case res := <-r.results:
			r.applyProbe(res)
		case <-r.batchDone:
			r.probing = false
		case reply := <-r.snapshot:
			reply <- r.snap()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// Done is closed once the loop has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

// Join admits an authenticated connection.
func (r *Room) Join(ctx context.Context, conn Sender, id models.Identity) error {
	if id == nil {
		return fmt.Errorf("join %s: %w", r.SceneID, auth.ErrUnauthenticated)
	}
	req := joinRequest{
		member: &Member{Conn: conn, Identity: id, State: StateUnauthenticated},
		reply:  make(chan error, 1),
	}
	select {
	case r.join <- req:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// Leave removes a connection and returns how many members remain.
func (r *Room) Leave(ctx context.Context, connID string) (int, error) {
	req := leaveRequest{id: connID, reply: make(chan int, 1)}
	select {
	case r.leave <- req:
	case <-r.done:
		return 0, ErrRoomClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-req.reply:
		return n, nil
	case <-r.done:
		return 0, ErrRoomClosed
	}
}

// Deliver queues an inbound message from connID.
func (r *Room) Deliver(ctx context.Context, connID string, msg *Message) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.deliver <- inbound{from: connID, msg: msg}:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the room's current state.
func (r *Room) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case r.snapshot <- reply:
	case <-r.done:
		return Snapshot{}, ErrRoomClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-r.done:
		return Snapshot{}, ErrRoomClosed
	}
}

func (r *Room) handleJoin(ctx context.Context, m *Member) error {
	if sceneID := m.SceneID(); sceneID != r.SceneID {
		return fmt.Errorf("identity for scene %q cannot join room %s", sceneID, r.SceneID)
	}
	m.State = StateJoined
	m.JoinedAt = time.Now()
	r.members.Add(m)

	switch id := m.Identity.(type) {
	case *models.HostSession:
		r.hostJoined(ctx, m, id)
	case *models.AnalyticsSession:
		r.log.Info("[Room] Analytics user connected", "member", m.ID(), "displayName", id.DisplayName, "world", id.World)
	}
	return nil
}

// hostJoined tells the other members of the scene and records the access.
func (r *Room) hostJoined(ctx context.Context, m *Member, host *models.HostSession) {
	r.members.DeliverToScene(host.SceneID, string(MsgHostJoined), map[string]any{"user": models.Project(host)}, m.ID())

	var snapshot any
	if scene, err := r.svc.Scenes.GetScene(ctx, host.SceneID); err == nil {
		snapshot = scene
	}
	r.svc.Audit.Record(ctx, host, host.SceneID, audit.Change{Action: "accessed scene"}, snapshot)
	r.log.Info("[Room] Host joined", "member", m.ID(), "displayName", host.DisplayName, "wallet", host.ConnectedWallet)
}

func (r *Room) handleLeave(ctx context.Context, connID string) int {
	m, ok := r.members.Remove(connID)
	if !ok {
		return r.members.Len()
	}
	m.State = StateClosed

	if !m.ended {
		if err := r.svc.Auth.EndSession(ctx, m.Identity); err != nil {
			r.log.Warn("[Room] Failed to end session", "member", connID, "error", err)
		}
		m.ended = true
	}

	switch id := m.Identity.(type) {
	case *models.HostSession:
		r.svc.Audit.Record(ctx, id, id.SceneID, audit.Change{Action: "left scene"}, nil)
	case *models.AnalyticsSession:
	}

	sceneID := m.SceneID()
	if r.members.CountScene(sceneID) == 0 {
		if n := r.streams.RemoveScene(sceneID); n > 0 {
			r.liveLog.Info("[Liveness] Purged scene streams", "removed", n)
		}
	}
	if userID := m.Identity.User(); userID != "" {
		delete(r.emotes, userID)
	}

	r.log.Info("[Room] Member left", "member", connID, "remaining", r.members.Len())
	return r.members.Len()
}

// disconnectAll runs the leave work for every remaining member. ctx of the loop
// is already cancelled here, so the stores get a fresh deadline.
func (r *Room) disconnectAll() int {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	ids := make([]string, 0, r.members.Len())
	for id := range r.members.byID {
		ids = append(ids, id)
	}
	for _, id := range ids {
		r.handleLeave(ctx, id)
	}
	return len(ids)
}

func (r *Room) handleInbound(ctx context.Context, in inbound) {
	m, ok := r.members.Get(in.from)
	if !ok || m.State != StateJoined {
		r.log.Debug("[Room] Dropped message from unknown member", "member", in.from, "type", in.msg.Type)
		return
	}
	r.svc.Router.Dispatch(ctx, r, m, in.msg)
}

func (r *Room) snap() Snapshot {
	return Snapshot{
		SceneID:   r.SceneID,
		Members:   r.members.Len(),
		ByKind:    r.members.Counts(),
		Streams:   r.streams.Records(),
		Cursor:    r.streams.Cursor(),
		Probing:   r.probing,
		StartedAt: r.started,
	}
}
