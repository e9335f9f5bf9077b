package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsniff/internal/events"
	"streamsniff/internal/ratelimit"
	"streamsniff/pkg/models"
)

// stubScraper implements Scraper without a browser.
type stubScraper struct {
	link     string
	found    bool
	sessions map[string]*models.Session
}

func (s *stubScraper) Scrape(ctx context.Context) (string, bool) {
	return s.link, s.found
}

func (s *stubScraper) GetSession(id string) (*models.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	return sess, nil
}

func (s *stubScraper) ListSessions(status models.SessionStatus) []*models.Session {
	var out []*models.Session
	for _, sess := range s.sessions {
		if status == "" || sess.Status == status {
			out = append(out, sess)
		}
	}
	return out
}

func newTestRouter(s *stubScraper) http.Handler {
	h := NewHandler(s, events.NewHub())
	return h.SetupRoutes(ratelimit.NewLimiter(3600, 100), 3600)
}

func TestScrapeReturnsLink(t *testing.T) {
	router := newTestRouter(&stubScraper{link: "https://cdn.example.com/playlist.m3u8", found: true})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/scrape", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]*string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "link")
	require.NotNil(t, body["link"])
	assert.Equal(t, "https://cdn.example.com/playlist.m3u8", *body["link"])
}

func TestScrapeReturnsNullWhenNotFound(t *testing.T) {
	router := newTestRouter(&stubScraper{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/scrape", nil))

	// Failures are indistinguishable from timeouts: always 200, link null.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"link":null}`, rec.Body.String())
}

func TestScrapeRateLimited(t *testing.T) {
	h := NewHandler(&stubScraper{}, events.NewHub())
	router := h.SetupRoutes(ratelimit.NewLimiter(60, 1), 60)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/scrape", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/scrape", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.JSONEq(t, `{"link":null}`, rec.Body.String(), "refusals keep the link-field body shape")
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&stubScraper{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetSessionNotFound(t *testing.T) {
	router := newTestRouter(&stubScraper{sessions: map[string]*models.Session{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSession(t *testing.T) {
	sess := &models.Session{
		ID:        "abc12345",
		Status:    models.StatusCompleted,
		TargetURL: "https://example.com",
		StartedAt: time.Now(),
		Link:      "https://cdn.example.com/a.m3u8",
	}
	router := newTestRouter(&stubScraper{sessions: map[string]*models.Session{"abc12345": sess}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions/abc12345", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var got models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "abc12345", got.ID)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, "https://cdn.example.com/a.m3u8", got.Link)
}

func TestListSessionsEmpty(t *testing.T) {
	router := newTestRouter(&stubScraper{sessions: map[string]*models.Session{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSessionEventsRejectsFinishedSession(t *testing.T) {
	sess := &models.Session{ID: "abc12345", Status: models.StatusCompleted}
	router := newTestRouter(&stubScraper{sessions: map[string]*models.Session{"abc12345": sess}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions/abc12345/events", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
