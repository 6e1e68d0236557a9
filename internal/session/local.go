package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/promptrunner/internal/browser"
	"github.com/ashureev/promptrunner/internal/config"
	"github.com/ashureev/promptrunner/internal/container"
	"github.com/google/uuid"
)

// LocalProvider runs each session in a throwaway headless Chrome container.
type LocalProvider struct {
	mgr     container.Manager
	logger  *slog.Logger
	connect func(ctx context.Context, endpoint string, opts browser.ConnectOptions) (*browser.Page, error)
}

// NewLocalProvider creates a provider backed by mgr.
func NewLocalProvider(mgr container.Manager, logger *slog.Logger) *LocalProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalProvider{mgr: mgr, logger: logger, connect: browser.Connect}
}

// Name returns the provider identifier.
func (p *LocalProvider) Name() string { return config.ProviderLocal }

// Open starts a container and attaches a page to it.
func (p *LocalProvider) Open(ctx context.Context, _ config.Credentials, model ModelConfig) (Session, error) {
	name := uuid.NewString()
	inst, err := p.mgr.StartBrowser(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	}

	release := func(ctx context.Context) error {
		return p.stop(ctx, inst.ContainerID)
	}

	page, err := p.connect(ctx, inst.Endpoint, browser.ConnectOptions{Logger: p.logger})
	if err != nil {
		if stopErr := release(context.WithoutCancel(ctx)); stopErr != nil {
			p.logger.Warn("Failed to stop browser container after attach failure", "container_id", inst.ContainerID, "error", stopErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	}

	p.logger.Info("Local browser session opened", "container_id", inst.ContainerID, "model", model.Model)
	return &pageSession{Page: page, id: "local-" + shortID(inst.ContainerID), release: release}, nil
}

// stop removes the container. A container that is no longer running counts as
// stopped even if its removal failed; the managed label lets it be swept later.
func (p *LocalProvider) stop(ctx context.Context, containerID string) error {
	err := p.mgr.StopContainer(ctx, containerID)
	if err == nil {
		return nil
	}
	running, runErr := p.mgr.IsRunning(ctx, containerID)
	if runErr == nil && !running {
		p.logger.Warn("Browser container stopped but not removed", "container_id", containerID, "error", err)
		return nil
	}
	return err
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
