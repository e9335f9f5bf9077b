package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"streamsniff/internal/events"
	"streamsniff/pkg/models"
)

// Scraper runs manifest searches and exposes their session records.
type Scraper interface {
	Scrape(ctx context.Context) (string, bool)
	GetSession(id string) (*models.Session, error)
	ListSessions(status models.SessionStatus) []*models.Session
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scraper Scraper
	hub     *events.Hub
}

// NewHandler creates a new HTTP handler
func NewHandler(scraper Scraper, hub *events.Hub) *Handler {
	return &Handler{
		scraper: scraper,
		hub:     hub,
	}
}

// Scrape handles GET /scrape. It always answers 200 with a JSON body whose
// link field is the captured manifest URL or null; callers cannot tell why
// a link is absent.
func (h *Handler) Scrape(w http.ResponseWriter, r *http.Request) {
	link, found := h.scraper.Scrape(r.Context())

	var resp models.ScrapeResponse
	if found {
		resp.Link = &link
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	sess, err := h.scraper.GetSession(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess)
}

// ListSessions handles GET /v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	statusStr := r.URL.Query().Get("status")

	var status models.SessionStatus
	if statusStr != "" {
		status = models.SessionStatus(statusStr)
	}

	sessions := h.scraper.ListSessions(status)
	if sessions == nil {
		sessions = []*models.Session{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

// SessionEvents handles GET /v1/sessions/{id}/events. It upgrades to a
// WebSocket and streams interception decisions for a running session until
// the session finishes or the client goes away.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	sess, err := h.scraper.GetSession(id)
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	if sess.Status != models.StatusRunning {
		http.Error(w, "Session is not running", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	ch, cancel := h.hub.Subscribe(id)
	defer cancel()

	// Read pump: we never expect frames from the client, but reading is how
	// a disconnect surfaces. Cancelling closes ch and ends the write loop.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	log.Printf("Client watching session %s events", id[:8])

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("Failed to write event for session %s: %v", id[:8], err)
			return
		}
	}

	log.Printf("Session %s event stream closed", id[:8])
}
