package scenes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Vasu1712/scenyx-rooms/internal/audit"
	"github.com/Vasu1712/scenyx-rooms/internal/auth"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/room"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
	"github.com/Vasu1712/scenyx-rooms/internal/ws"
)

// SceneHandler serves the scene WebSocket and the read-only scene endpoints.
type SceneHandler struct {
	Auth   *auth.Authenticator
	Rooms  *room.Manager
	Hub    *ws.Hub
	Scenes storage.SceneStore
	Audit  *audit.Recorder
	NodeID string
	Log    *slog.Logger

	upgrader websocket.Upgrader
}

// NewSceneHandler returns a handler accepting WebSocket upgrades from
// origins. An empty list accepts any origin.
func NewSceneHandler(h SceneHandler, origins []string) *SceneHandler {
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(origins) == 0 || origin == "" || slices.Contains(origins, origin)
		},
	}
	return &h
}

// ServeWS authenticates a connection and hands it to the room of its scene.
func (h *SceneHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	creds := auth.Credentials{
		Token:   r.URL.Query().Get("token"),
		SceneID: r.URL.Query().Get("sceneId"),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("[Scene] WebSocket upgrade failed", "sceneId", creds.SceneID, "error", err)
		return
	}
	client := ws.NewClient(conn, h.Log)
	ctx := r.Context()

	id, err := h.Auth.Authenticate(ctx, creds)
	if err != nil {
		h.Log.Info("[Scene] Connection rejected", "sceneId", creds.SceneID, "error", err)
		client.Reject(websocket.ClosePolicyViolation, "unauthenticated")
		return
	}

	if !h.Hub.Register(client) {
		h.endSession(id)
		client.Reject(websocket.CloseGoingAway, "server shutting down")
		return
	}

	rm, err := h.Rooms.Join(ctx, client, id)
	if err != nil {
		h.Log.Warn("[Scene] Join failed", "sceneId", id.Scene(), "conn", client.ID(), "error", err)
		h.endSession(id)
		h.Hub.Unregister(client)
		code := websocket.CloseInternalServerErr
		if errors.Is(err, room.ErrSceneOwnedElsewhere) {
			code = websocket.CloseTryAgainLater
		}
		client.Reject(code, "scene unavailable")
		return
	}
	h.Log.Info("[Scene] Connection admitted", "sceneId", rm.SceneID, "conn", client.ID(), "kind", id.Kind())

	go client.WritePump()
	client.ReadPump(func(env ws.Envelope) {
		msg, err := room.NewMessage(room.MessageType(env.Type), env.Data)
		if err != nil {
			h.Log.Warn("[Scene] Dropped malformed message", "type", env.Type, "conn", client.ID(), "error", err)
			return
		}
		if err := rm.Deliver(ctx, client.ID(), msg); err != nil {
			h.Log.Warn("[Scene] Message not delivered", "type", env.Type, "conn", client.ID(), "error", err)
		}
	})

	leaveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.Rooms.Leave(leaveCtx, rm, client.ID())
	h.Hub.Unregister(client)
	h.Log.Info("[Scene] Connection closed", "sceneId", rm.SceneID, "conn", client.ID())
}

// endSession closes the session record of an identity that never joined.
func (h *SceneHandler) endSession(id models.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Auth.EndSession(ctx, id); err != nil {
		h.Log.Warn("[Scene] Failed to end session", "sceneId", id.Scene(), "error", err)
	}
}

type statusResponse struct {
	*models.Scene
	Node string         `json:"node,omitempty"`
	Room *room.Snapshot `json:"room,omitempty"`
}

// Status returns the scene with its live member count and, when this node
// hosts it, the room's stream cache.
func (h *SceneHandler) Status(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneID"]
	scene, err := h.Scenes.GetScene(r.Context(), sceneID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Scene not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.Log.Error("[Scene] Failed to load scene", "sceneId", sceneID, "error", err)
		http.Error(w, "Failed to load scene", http.StatusInternalServerError)
		return
	}

	res := statusResponse{Scene: scene}
	if rm, ok := h.Rooms.Room(sceneID); ok {
		snap, err := rm.Snapshot(r.Context())
		if err == nil {
			scene.ActiveUsers = snap.Members
			res.Node = h.NodeID
			res.Room = &snap
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// History returns the audit chain of a scene.
func (h *SceneHandler) History(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneID"]
	hist, err := h.Audit.History(r.Context(), sceneID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "No history for scene", http.StatusNotFound)
		return
	}
	if err != nil {
		h.Log.Error("[Scene] Failed to load history", "sceneId", sceneID, "error", err)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// Healthz reports the node's load.
func (h *SceneHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"node":        h.NodeID,
		"rooms":       h.Rooms.Len(),
		"connections": h.Hub.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
