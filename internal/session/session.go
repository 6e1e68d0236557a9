// Package session opens and closes remote browser sessions.
package session

import (
	"context"
	"errors"

	"github.com/ashureev/promptrunner/internal/browser"
	"github.com/ashureev/promptrunner/internal/config"
)

// ErrSessionInit wraps every failure to open a session.
var ErrSessionInit = errors.New("session init failed")

// ModelConfig describes the model that will drive the session.
type ModelConfig struct {
	Provider string
	Model    string
}

// Session is an open browser session owned by one execution.
type Session interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Press(ctx context.Context, key string) error
	Scroll(ctx context.Context, dy int) error
	Observe(ctx context.Context) (*browser.Observation, error)
	// Close releases the session. Implementations tolerate repeated calls.
	Close(ctx context.Context) error
}

// Provider creates sessions.
type Provider interface {
	Name() string
	Open(ctx context.Context, creds config.Credentials, model ModelConfig) (Session, error)
}

// pageSession adapts a browser page plus a release hook to Session.
type pageSession struct {
	*browser.Page
	id      string
	release func(ctx context.Context) error

	closed   bool
	closeErr error
}

func (s *pageSession) ID() string { return s.id }

func (s *pageSession) Close(ctx context.Context) error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true

	pageErr := s.Page.Close()
	var releaseErr error
	if s.release != nil {
		releaseErr = s.release(ctx)
	}
	s.closeErr = errors.Join(pageErr, releaseErr)
	return s.closeErr
}
