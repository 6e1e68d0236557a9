package browser

import (
	"context"
	"errors"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("olá mundo", 3); got != "olá..." {
		t.Errorf("expected rune-safe truncation, got %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("expected untouched string, got %q", got)
	}
}

func TestClosedPageRejectsOperations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Page{
		allocCancel: func() {},
		ctx:         ctx,
		cancel:      cancel,
		logger:      discardLogger(),
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}

	if _, err := p.Screenshot(context.Background()); !errors.Is(err, ErrPageClosed) {
		t.Fatalf("expected ErrPageClosed, got %v", err)
	}
	if err := p.Navigate(context.Background(), "https://example.com"); !errors.Is(err, ErrPageClosed) {
		t.Fatalf("expected ErrPageClosed from Navigate, got %v", err)
	}
}
