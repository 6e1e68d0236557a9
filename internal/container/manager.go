// Package container provides Docker-backed headless Chrome instances for local sessions.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	// DevTools port exposed by the headless-shell image.
	devToolsPort = nat.Port("9222/tcp")

	containerPrefix = "promptrunner-browser-"
	managedLabel    = "promptrunner.managed"
	// Stop grace period, kept well below the session close timeout so the
	// forced removal still has time to run.
	stopTimeoutSecs = 2
	removeTimeout   = 5 * time.Second

	// Resource limits.
	memoryLimitBytes = 1024 * 1024 * 1024 // 1GB
	cpuQuota         = 100000             // 1 CPU
	pidsLimit        = 512
	shmSizeBytes     = 256 * 1024 * 1024

	readyAttempts = 40
	readyDelay    = 250 * time.Millisecond
)

// Instance is a running browser container.
type Instance struct {
	ContainerID string
	// Endpoint is the DevTools HTTP endpoint, e.g. http://127.0.0.1:49153.
	Endpoint string
}

// Manager defines the interface for managing local browser containers.
type Manager interface {
	// StartBrowser creates and starts a browser container and waits for DevTools.
	StartBrowser(ctx context.Context, name string) (*Instance, error)

	// StopContainer stops and removes a container.
	StopContainer(ctx context.Context, containerID string) error

	// IsRunning checks if a container is currently running.
	IsRunning(ctx context.Context, containerID string) (bool, error)
}

// DockerManager implements Manager using the Docker API.
type DockerManager struct {
	cli        *client.Client
	image      string
	runtime    string // Container runtime: "" = default (runc), "runsc" = gVisor
	httpClient *http.Client
}

// NewDockerManager creates a new Docker-backed browser manager.
// runtime can be "" for default Docker runtime or "runsc" for gVisor.
func NewDockerManager(imageName, runtime string) (*DockerManager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if runtime != "" {
		slog.Info("Docker client initialized", "runtime", runtime, "image", imageName)
	} else {
		slog.Info("Docker client initialized", "runtime", "default", "image", imageName)
	}
	return &DockerManager{
		cli:        cli,
		image:      imageName,
		runtime:    runtime,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}, nil
}

// StartBrowser creates and starts a browser container named after name.
func (m *DockerManager) StartBrowser(ctx context.Context, name string) (*Instance, error) {
	containerName := containerPrefix + name

	config := &container.Config{
		Image:        m.image,
		ExposedPorts: nat.PortSet{devToolsPort: struct{}{}},
		Labels:       map[string]string{managedLabel: "true"},
	}

	hostConfig := &container.HostConfig{
		Runtime: m.runtime,
		PortBindings: nat.PortMap{
			devToolsPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
		},
		ShmSize: shmSizeBytes,
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
		AutoRemove: false,
	}

	resp, err := m.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, containerName)
	if err != nil && errdefs.IsNotFound(err) {
		slog.Info("Browser image missing, pulling", "image", m.image)
		if pullErr := m.pullImage(ctx); pullErr != nil {
			return nil, pullErr
		}
		resp, err = m.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, containerName)
	}
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		m.removeQuietly(resp.ID)
		return nil, fmt.Errorf("start container %s: %w", resp.ID, err)
	}

	endpoint, err := m.devToolsEndpoint(ctx, resp.ID)
	if err != nil {
		m.removeQuietly(resp.ID)
		return nil, err
	}

	if err := m.waitForDevTools(ctx, endpoint); err != nil {
		m.removeQuietly(resp.ID)
		return nil, fmt.Errorf("browser container %s not ready: %w", resp.ID, err)
	}

	slog.Info("Browser container started", "container_id", resp.ID, "endpoint", endpoint)
	return &Instance{ContainerID: resp.ID, Endpoint: endpoint}, nil
}

func (m *DockerManager) pullImage(ctx context.Context) error {
	rc, err := m.cli.ImagePull(ctx, m.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", m.image, err)
	}
	defer func() { _ = rc.Close() }()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("read pull progress for %s: %w", m.image, err)
	}
	return nil
}

func (m *DockerManager) devToolsEndpoint(ctx context.Context, containerID string) (string, error) {
	inspect, err := m.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("inspect container %s: %w", containerID, err)
	}
	if inspect.NetworkSettings == nil {
		return "", fmt.Errorf("container %s has no network settings", containerID)
	}
	bindings := inspect.NetworkSettings.Ports[devToolsPort]
	if len(bindings) == 0 || bindings[0].HostPort == "" {
		return "", fmt.Errorf("container %s has no published DevTools port", containerID)
	}
	host := bindings[0].HostIP
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + host + ":" + bindings[0].HostPort, nil
}

func (m *DockerManager) waitForDevTools(ctx context.Context, endpoint string) error {
	var lastErr error
	for i := 0; i < readyAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/json/version", nil)
		if err != nil {
			return fmt.Errorf("create readiness request: %w", err)
		}
		resp, err := m.httpClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("devtools returned status %d", resp.StatusCode)
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyDelay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", readyAttempts, lastErr)
}

func (m *DockerManager) removeQuietly(containerID string) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true}); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Failed to remove browser container after setup failure", "container_id", containerID, "error", err)
	}
}

// StopContainer stops and removes a container.
// It is idempotent and handles concurrent calls gracefully.
func (m *DockerManager) StopContainer(ctx context.Context, containerID string) error {
	slog.Info("Stopping browser container", "container_id", containerID)

	_, err := m.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			slog.Debug("Container already removed", "container_id", containerID)
			return nil
		}
		return fmt.Errorf("inspect container %s: %w", containerID, err)
	}

	timeout := stopTimeoutSecs
	if err := m.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		if errdefs.IsNotFound(err) {
			slog.Debug("Container already stopped/removed", "container_id", containerID)
		} else if ctx.Err() != nil {
			slog.Debug("Context canceled during stop, continuing with force removal", "container_id", containerID)
		} else {
			slog.Debug("Container stop returned error, continuing to remove", "container_id", containerID, "error", err)
		}
	}

	// A slow stop may have used up ctx; removal gets its own budget.
	removeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()

	if err := m.cli.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			slog.Debug("Container already removed", "container_id", containerID)
			return nil
		}
		if strings.Contains(err.Error(), "is already in progress") {
			slog.Debug("Container removal already in progress", "container_id", containerID)
			return nil
		}
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}

	slog.Info("Browser container stopped and removed", "container_id", containerID)
	return nil
}

// IsRunning checks if a container is currently running.
func (m *DockerManager) IsRunning(ctx context.Context, containerID string) (bool, error) {
	inspect, err := m.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect container %s: %w", containerID, err)
	}
	return inspect.State != nil && inspect.State.Running, nil
}

// Close releases the Docker client.
func (m *DockerManager) Close() error {
	return m.cli.Close()
}

func ptr[T any](v T) *T {
	return &v
}
