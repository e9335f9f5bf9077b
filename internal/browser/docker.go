package browser

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const chromeImage = "ghcr.io/go-rod/rod"

// dockerAPI is the slice of the Docker client this pool uses.
type dockerAPI interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// DockerPool launches each Chrome in its own container and connects to it
// over the exposed debugging port.
type DockerPool struct {
	client    dockerAPI
	waitReady func(port string) error
}

// NewDockerPool creates a container-backed Chrome launcher
func NewDockerPool() (*DockerPool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	p := &DockerPool{client: cli}
	p.waitReady = p.waitForDebugger
	return p, nil
}

// EnsureImage pulls the Chrome image if it is not present locally.
func (p *DockerPool) EnsureImage(ctx context.Context) error {
	images, err := p.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == chromeImage || tag == chromeImage+":latest" {
				return nil
			}
		}
	}

	reader, err := p.client.ImagePull(ctx, chromeImage, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (p *DockerPool) Launch(ctx context.Context) (*Instance, error) {
	id := uuid.New().String()

	containerConfig := &container.Config{
		Image: chromeImage,
		Cmd: []string{
			"chrome",
			"--headless",
			"--no-sandbox",
			"--disable-blink-features=AutomationControlled",
			"--remote-debugging-port=9222",
			"--remote-debugging-address=0.0.0.0",
		},
		Labels: map[string]string{
			"scrape-id":  id,
			"managed-by": "streamsniff",
		},
		ExposedPorts: nat.PortSet{
			"9222/tcp": struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			"9222/tcp": []nat.PortBinding{
				{
					HostIP:   "0.0.0.0",
					HostPort: "0",
				},
			},
		},
		AutoRemove: false,
	}

	resp, err := p.client.ContainerCreate(
		ctx,
		containerConfig,
		hostConfig,
		nil,
		nil,
		fmt.Sprintf("scrape-%s", id[:8]),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	// The container exists now; a failure on any later step must not
	// leave it behind.
	discard := func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.client.ContainerRemove(removeCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
			log.Printf("browser: warning: failed to remove container %s: %v", resp.ID[:12], err)
		}
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		discard()
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		discard()
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	bindings := inspect.NetworkSettings.Ports["9222/tcp"]
	if len(bindings) == 0 {
		discard()
		return nil, fmt.Errorf("no host port bound for container %s", resp.ID[:12])
	}
	port := bindings[0].HostPort

	if err := p.waitReady(port); err != nil {
		discard()
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}

	controlURL, err := launcher.ResolveURL("localhost:" + port)
	if err != nil {
		discard()
		return nil, fmt.Errorf("failed to resolve control url: %w", err)
	}

	return &Instance{
		ControlURL:  controlURL,
		ContainerID: resp.ID,
	}, nil
}

func (p *DockerPool) Stop(ctx context.Context, inst *Instance) error {
	if inst == nil || inst.ContainerID == "" {
		return nil
	}

	timeout := 10
	stopOptions := container.StopOptions{
		Timeout: &timeout,
	}

	if err := p.client.ContainerStop(ctx, inst.ContainerID, stopOptions); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	if err := p.client.ContainerRemove(ctx, inst.ContainerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	return nil
}

func (p *DockerPool) Close() error {
	return p.client.Close()
}

// waitForDebugger polls the /json/version endpoint until Chrome answers.
func (p *DockerPool) waitForDebugger(port string) error {
	url := fmt.Sprintf("http://localhost:%s/json/version", port)
	maxRetries := 20 // 10 seconds total (20 * 500ms)

	for i := 0; i < maxRetries; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}

	return fmt.Errorf("browser did not become ready after %d retries", maxRetries)
}
