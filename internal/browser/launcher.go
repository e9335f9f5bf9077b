package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
)

// Instance is one running Chrome reachable over CDP.
type Instance struct {
	ControlURL  string
	ContainerID string

	stop func() error
}

// Launcher starts and stops isolated Chrome instances. Each scrape owns
// exactly one instance for its lifetime.
type Launcher interface {
	Launch(ctx context.Context) (*Instance, error)
	Stop(ctx context.Context, inst *Instance) error
	Close() error
}

// Local launches Chrome on the host machine via the rod launcher.
type Local struct {
	headless bool
}

// NewLocal creates a host-local Chrome launcher
func NewLocal(headless bool) *Local {
	return &Local{headless: headless}
}

func (l *Local) Launch(ctx context.Context) (*Instance, error) {
	la := launcher.New().
		Context(ctx).
		Headless(l.headless).
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	controlURL, err := la.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	return &Instance{
		ControlURL: controlURL,
		stop: func() error {
			la.Kill()
			la.Cleanup()
			return nil
		},
	}, nil
}

func (l *Local) Stop(ctx context.Context, inst *Instance) error {
	if inst == nil || inst.stop == nil {
		return nil
	}
	return inst.stop()
}

func (l *Local) Close() error {
	return nil
}
