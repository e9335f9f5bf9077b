package finder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsniff/internal/browser"
)

// fakeLauncher records lifecycle calls without starting a real browser.
type fakeLauncher struct {
	launchErr  error
	controlURL string
	launches   int
	stops      int
}

func (f *fakeLauncher) Launch(ctx context.Context) (*browser.Instance, error) {
	f.launches++
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	return &browser.Instance{ControlURL: f.controlURL}, nil
}

func (f *fakeLauncher) Stop(ctx context.Context, inst *browser.Instance) error {
	f.stops++
	return nil
}

func (f *fakeLauncher) Close() error { return nil }

func TestFindEmptyURLCreatesNoSession(t *testing.T) {
	fl := &fakeLauncher{}
	f := New(fl)

	link, found := f.Find(context.Background(), "", nil)

	assert.False(t, found)
	assert.Empty(t, link)
	assert.Zero(t, fl.launches, "no browser should be launched for an empty URL")
}

func TestFindLaunchFailureReadsAsNotFound(t *testing.T) {
	fl := &fakeLauncher{launchErr: errors.New("resource exhaustion")}
	f := New(fl)

	link, found := f.Find(context.Background(), "https://example.com", nil)

	assert.False(t, found)
	assert.Empty(t, link)
	assert.Zero(t, fl.stops, "nothing to tear down when launch fails")
}

func TestFindTearsDownExactlyOnceOnConnectFailure(t *testing.T) {
	// Nothing listens on port 1, so connecting to the browser fails fast.
	fl := &fakeLauncher{controlURL: "ws://127.0.0.1:1"}
	f := New(fl)

	link, found := f.Find(context.Background(), "https://example.com", nil)

	assert.False(t, found)
	assert.Empty(t, link)
	assert.Equal(t, 1, fl.launches)
	assert.Equal(t, 1, fl.stops, "teardown must run even when the search fails")
}

func TestWaitForCaptureReturnsOnCapture(t *testing.T) {
	st := newCaptureState()

	go func() {
		time.Sleep(10 * time.Millisecond)
		st.decide("https://cdn.example.com/a.m3u8")
	}()

	start := time.Now()
	outcome := waitForCapture(context.Background(), st, 5*time.Second)

	assert.Equal(t, waitCaptured, outcome)
	assert.Less(t, time.Since(start), time.Second, "capture should end the wait early")

	link, found := st.result()
	require.True(t, found)
	assert.Equal(t, "https://cdn.example.com/a.m3u8", link)
}

func TestWaitForCaptureDeadlineElapses(t *testing.T) {
	st := newCaptureState()

	start := time.Now()
	outcome := waitForCapture(context.Background(), st, 50*time.Millisecond)

	assert.Equal(t, waitDeadline, outcome)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	_, found := st.result()
	assert.False(t, found)
}

func TestWaitForCaptureCallerCancellation(t *testing.T) {
	st := newCaptureState()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := waitForCapture(ctx, st, 5*time.Second)
	assert.Equal(t, waitCancelled, outcome)
}

func TestFindHonorsShortDeadline(t *testing.T) {
	// Nothing listens on port 1, so the search fails fast after launch;
	// the shortened deadline keeps the test bounded either way.
	fl := &fakeLauncher{controlURL: "ws://127.0.0.1:1"}
	f := &Finder{launcher: fl, deadline: 50 * time.Millisecond}

	start := time.Now()
	link, found := f.Find(context.Background(), "https://example.com", nil)

	assert.False(t, found)
	assert.Empty(t, link)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, fl.stops)
}

func TestFindIndependentCalls(t *testing.T) {
	fl := &fakeLauncher{controlURL: "ws://127.0.0.1:1"}
	f := New(fl)

	f.Find(context.Background(), "https://example.com", nil)
	f.Find(context.Background(), "https://example.com", nil)

	assert.Equal(t, 2, fl.launches, "each call owns its own session")
	assert.Equal(t, 2, fl.stops)
}
