package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"streamsniff/internal/api"
	"streamsniff/internal/browser"
	"streamsniff/internal/events"
	"streamsniff/internal/finder"
	"streamsniff/internal/ratelimit"
	"streamsniff/internal/session"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	log.Println("Starting streamsniff...")

	port := envOr("PORT", "8080")
	targetURL := envOr("TARGET_URL", finder.DefaultTargetURL)
	headless := envOr("HEADLESS", "true") != "false"
	maxSessions := envInt("MAX_SESSIONS", 4)

	// Pick the browser launcher
	var launcher browser.Launcher
	if envOr("BROWSER_MODE", "local") == "docker" {
		pool, err := browser.NewDockerPool()
		if err != nil {
			log.Fatalf("Failed to create docker pool: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		log.Println("⏳ Ensuring Chrome image is available...")
		if err := pool.EnsureImage(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to ensure image: %v", err)
		}
		cancel()
		log.Println("✓ Chrome image ready")

		launcher = pool
	} else {
		launcher = browser.NewLocal(headless)
	}
	defer launcher.Close()
	log.Println("✓ Browser launcher initialized")

	// Initialize event hub and session manager
	hub := events.NewHub()
	sessionMgr := session.NewManager(finder.New(launcher), hub, targetURL, int64(maxSessions))
	log.Println("✓ Session manager initialized")

	// Initialize rate limiter (60 requests/hour, burst of 5)
	rateLimiter := ratelimit.NewLimiter(60, 5)
	log.Println("✓ Rate limiter initialized (60 req/hour per client)")

	// Setup HTTP handlers
	handler := api.NewHandler(sessionMgr, hub)
	router := handler.SetupRoutes(rateLimiter, 60)
	log.Println("✓ HTTP routes configured")

	// Create HTTP server. The write timeout must outlive a full search:
	// deadline plus teardown overhead.
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%s", port)
		log.Printf("🔍 GET /scrape searches %s for a manifest link", targetURL)
		log.Println("📍 Session records at http://localhost:" + port + "/v1/sessions")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("\n⏳ Shutting down server gracefully...")

	// Shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped cleanly")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
