// Package finder drives an isolated headless browser to a page and captures
// the first streaming-manifest URL seen in its outgoing network traffic.
package finder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"streamsniff/internal/browser"
)

const (
	manifestSuffix = ".m3u8"
	findDeadline   = 10 * time.Second

	// DefaultTargetURL is the page scraped by GET /scrape.
	DefaultTargetURL = "https://www.aljazeera.com/live"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Finder owns the browser launcher used for manifest searches.
type Finder struct {
	launcher browser.Launcher
	deadline time.Duration
}

// New creates a manifest finder
func New(l browser.Launcher) *Finder {
	return &Finder{
		launcher: l,
		deadline: findDeadline,
	}
}

// Find opens one isolated browser session, intercepts its outgoing
// requests, and returns the first URL ending in the manifest suffix. It
// waits at most the fixed deadline. Internal errors never escape: every
// failure mode collapses to not-found. observe may be nil.
func (f *Finder) Find(ctx context.Context, pageURL string, observe ObserveFunc) (string, bool) {
	if pageURL == "" {
		return "", false
	}

	st := newCaptureState()

	inst, err := f.launcher.Launch(ctx)
	if err != nil {
		log.Printf("finder: browser launch failed: %v", err)
		return "", false
	}
	defer func() {
		// Teardown runs on every exit path. It is what actually kills any
		// still-pending browser activity after the deadline fires.
		if err := f.launcher.Stop(context.Background(), inst); err != nil {
			log.Printf("finder: warning: browser teardown failed: %v", err)
		}
	}()

	if err := f.search(ctx, inst, pageURL, st, observe); err != nil {
		// A capture may have landed before the error, so the error does
		// not decide the outcome.
		log.Printf("finder: search failed for %s: %v", pageURL, err)
	}

	return st.result()
}

func (f *Finder) search(ctx context.Context, inst *browser.Instance, pageURL string, st *captureState, observe ObserveFunc) error {
	b := rod.New().Context(ctx).ControlURL(inst.ControlURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Printf("finder: warning: browser close failed: %v", err)
		}
	}()

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Printf("finder: warning: page close failed: %v", err)
		}
	}()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}

	router := page.HijackRequests()
	err = router.Add("*", "", func(h *rod.Hijack) {
		f.decideRequest(h, st, observe)
	})
	if err != nil {
		return fmt.Errorf("failed to install interceptor: %w", err)
	}

	go router.Run()
	defer func() {
		// Best effort: the search is already decided by the time this runs.
		if err := router.Stop(); err != nil {
			log.Printf("finder: warning: failed to disable interception: %v", err)
		}
	}()

	// Navigate in the background with a DOMContentLoaded readiness
	// criterion; the manifest request typically fires well before the page
	// finishes loading, so navigation failures are warnings only.
	nav := page.Timeout(f.deadline)
	go func() {
		wait := nav.WaitEvent(&proto.PageDomContentEventFired{})
		if err := nav.Navigate(pageURL); err != nil {
			log.Printf("finder: warning: navigation failed: %v", err)
			return
		}
		wait()
	}()

	switch waitForCapture(ctx, st, f.deadline) {
	case waitCaptured:
		log.Printf("finder: captured manifest link for %s", pageURL)
	case waitDeadline:
		log.Printf("finder: deadline elapsed without a manifest request for %s", pageURL)
	}

	return nil
}

type waitOutcome int

const (
	waitCaptured waitOutcome = iota
	waitDeadline
	waitCancelled
)

// waitForCapture blocks until the first capture, the deadline, or caller
// cancellation, whichever comes first. This is the search's sole
// synchronization point; nothing polls.
func waitForCapture(ctx context.Context, st *captureState, deadline time.Duration) waitOutcome {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case <-st.done:
		return waitCaptured
	case <-timer.C:
		return waitDeadline
	case <-ctx.Done():
		return waitCancelled
	}
}

// decideRequest resolves one intercepted request exactly once.
func (f *Finder) decideRequest(h *rod.Hijack, st *captureState, observe ObserveFunc) {
	defer func() {
		// The browser may have resolved the request on its own before our
		// decision landed; skip it instead of tearing the router down.
		if r := recover(); r != nil {
			log.Printf("finder: warning: skipping already-resolved request: %v", r)
		}
	}()

	rawURL := h.Request.URL().String()
	decision := st.decide(rawURL)
	if observe != nil {
		observe(rawURL, decision)
	}

	switch decision {
	case DecisionAllowed:
		h.ContinueRequest(&proto.FetchContinueRequest{})
	default:
		// Captured or post-capture: the payload is never needed.
		h.Response.Fail(proto.NetworkErrorReasonAborted)
	}
}
