package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/promptrunner/internal/browser"
	"github.com/ashureev/promptrunner/internal/browserbase"
	"github.com/ashureev/promptrunner/internal/config"
)

// BrowserbaseProvider opens hosted sessions and attaches over their connect URL.
type BrowserbaseProvider struct {
	cfg    config.BrowserbaseConfig
	logger *slog.Logger
	// connect is swapped in tests.
	connect func(ctx context.Context, endpoint string, opts browser.ConnectOptions) (*browser.Page, error)
}

// NewBrowserbaseProvider creates a provider for the hosted session API.
func NewBrowserbaseProvider(cfg config.BrowserbaseConfig, logger *slog.Logger) *BrowserbaseProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserbaseProvider{cfg: cfg, logger: logger, connect: browser.Connect}
}

// Name returns the provider identifier.
func (p *BrowserbaseProvider) Name() string { return config.ProviderBrowserbase }

// Open creates a remote session and attaches a page to it. A session created
// on the API is released again if attaching fails.
func (p *BrowserbaseProvider) Open(ctx context.Context, creds config.Credentials, model ModelConfig) (Session, error) {
	client := browserbase.New(browserbase.Config{
		APIKey:  creds.BrowserbaseAPIKey,
		BaseURL: p.cfg.BaseURL,
		Timeout: p.cfg.Timeout,
		Logger:  p.logger,
	})

	remote, err := client.CreateSession(ctx, browserbase.CreateSessionRequest{
		ProjectID: creds.BrowserbaseProjectID,
		UserMetadata: map[string]string{
			"client":         "promptrunner",
			"model":          model.Model,
			"model_provider": model.Provider,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	}

	release := func(ctx context.Context) error {
		return p.release(ctx, client, creds.BrowserbaseProjectID, remote.ID)
	}

	page, err := p.connect(ctx, remote.ConnectURL, browser.ConnectOptions{NoModifyURL: true, Logger: p.logger})
	if err != nil {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			p.logger.Warn("Failed to release session after attach failure", "session_id", remote.ID, "error", relErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	}

	return &pageSession{Page: page, id: remote.ID, release: release}, nil
}

// release asks the API to end a session. A session the API already reports
// as ended counts as released.
func (p *BrowserbaseProvider) release(ctx context.Context, client *browserbase.Client, projectID, sessionID string) error {
	err := client.ReleaseSession(ctx, projectID, sessionID)
	if err == nil {
		return nil
	}
	remote, getErr := client.GetSession(ctx, sessionID)
	if getErr == nil && remote.Status.Ended() {
		p.logger.Info("Session already ended", "session_id", sessionID, "status", remote.Status)
		return nil
	}
	return err
}
