package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"streamsniff/internal/events"
	"streamsniff/internal/finder"
	"streamsniff/pkg/models"
)

// LinkFinder runs one manifest search per call.
type LinkFinder interface {
	Find(ctx context.Context, pageURL string, observe finder.ObserveFunc) (string, bool)
}

// Manager runs scrapes and keeps the per-request session records that the
// observability endpoints read. Every scrape owns its own browser; records
// are never shared between searches.
type Manager struct {
	sessions  sync.Map
	slots     *semaphore.Weighted
	finder    LinkFinder
	hub       *events.Hub
	targetURL string
}

// NewManager creates a new session manager
func NewManager(f LinkFinder, hub *events.Hub, targetURL string, maxSessions int64) *Manager {
	return &Manager{
		slots:     semaphore.NewWeighted(maxSessions),
		finder:    f,
		hub:       hub,
		targetURL: targetURL,
	}
}

// Scrape runs one manifest search against the configured target page.
// It never returns an error: any failure, including hitting the browser
// concurrency cap, reads as not-found.
func (m *Manager) Scrape(ctx context.Context) (string, bool) {
	if !m.slots.TryAcquire(1) {
		log.Printf("session: browser concurrency limit reached, refusing new session")
		return "", false
	}
	defer m.slots.Release(1)

	sess := &models.Session{
		ID:        uuid.New().String(),
		Status:    models.StatusRunning,
		TargetURL: m.targetURL,
		StartedAt: time.Now(),
	}
	m.sessions.Store(sess.ID, sess)
	defer m.hub.CloseSession(sess.ID)

	log.Printf("session: %s searching %s", sess.ID[:8], m.targetURL)

	observe := func(rawURL string, decision finder.Decision) {
		m.hub.Publish(events.Event{
			SessionID: sess.ID,
			URL:       rawURL,
			Decision:  string(decision),
			Matched:   decision == finder.DecisionCaptured,
			At:        time.Now(),
		})
	}

	link, found := m.finder.Find(ctx, m.targetURL, observe)

	done := &models.Session{
		ID:         sess.ID,
		TargetURL:  sess.TargetURL,
		StartedAt:  sess.StartedAt,
		FinishedAt: time.Now(),
	}
	if found {
		done.Status = models.StatusCompleted
		done.Link = link
		log.Printf("session: %s found %s", sess.ID[:8], link)
	} else {
		done.Status = models.StatusTimedOut
		log.Printf("session: %s finished without a link", sess.ID[:8])
	}
	m.sessions.Store(done.ID, done)

	return link, found
}

// GetSession retrieves a session record by ID
func (m *Manager) GetSession(id string) (*models.Session, error) {
	value, ok := m.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	return value.(*models.Session), nil
}

// ListSessions returns all session records, optionally filtered by status
func (m *Manager) ListSessions(status models.SessionStatus) []*models.Session {
	var sessions []*models.Session

	m.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*models.Session)

		if status != "" && sess.Status != status {
			return true
		}

		sessions = append(sessions, sess)
		return true
	})

	return sessions
}
