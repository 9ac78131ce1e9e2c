package scenes

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterSceneRoutes registers the scene WebSocket and HTTP routes on r.
func RegisterSceneRoutes(r *mux.Router, handler *SceneHandler) {
	r.HandleFunc("/ws/scenes", handler.ServeWS).Methods(http.MethodGet)

	// not a subrouter: mux subrouters answer a method mismatch with 404
	r.HandleFunc("/api/v1/scenes/{sceneID}/status", handler.Status).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/scenes/{sceneID}/history", handler.History).Methods(http.MethodGet)

	r.HandleFunc("/healthz", handler.Healthz).Methods(http.MethodGet)
}
