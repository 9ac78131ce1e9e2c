package room

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// HandlerFunc handles one message type. Returning true asks the router to echo
// the message to every member of the sender's scene.
type HandlerFunc func(ctx context.Context, r *Room, m *Member, msg *Message) bool

// Router maps message tags to handlers.
type Router struct {
	handlers map[MessageType]HandlerFunc
	log      *slog.Logger
}

// NewRouter returns a router with every scene handler registered.
func NewRouter(log *slog.Logger) *Router {
	rt := &Router{handlers: make(map[MessageType]HandlerFunc), log: log}
	rt.registerDefaults()
	return rt
}

// Handle registers h for t, replacing any previous handler.
func (rt *Router) Handle(t MessageType, h HandlerFunc) {
	rt.handlers[t] = h
}

// Known reports whether t has a handler.
func (rt *Router) Known(t MessageType) bool {
	_, ok := rt.handlers[t]
	return ok
}

// Dispatch runs the handler for msg and performs the scene echo. It reports
// whether the message was echoed. Handler panics are contained here.
func (rt *Router) Dispatch(ctx context.Context, r *Room, m *Member, msg *Message) (broadcast bool) {
	h, ok := rt.handlers[msg.Type]
	if !ok {
		rt.log.Debug("[Router] Ignored unknown message type", "type", msg.Type, "member", m.ID())
		return false
	}

	defer func() {
		if p := recover(); p != nil {
			rt.log.Error("[Router] Handler panicked",
				"type", msg.Type,
				"member", m.ID(),
				"user", m.Identity.User(),
				"sceneId", m.SceneID(),
				"message", msg,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()))
			broadcast = false
		}
	}()

	if !h(ctx, r, m, msg) {
		return false
	}
	sceneID := m.SceneID()
	if sceneID == "" {
		return false
	}
	r.members.DeliverToScene(sceneID, string(msg.Type), msg)
	return true
}
