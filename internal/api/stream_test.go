package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/promptrunner/internal/agent"
	"github.com/ashureev/promptrunner/internal/browser"
	"github.com/ashureev/promptrunner/internal/config"
	"github.com/ashureev/promptrunner/internal/domain"
	"github.com/ashureev/promptrunner/internal/executor"
	"github.com/ashureev/promptrunner/internal/session"
)

type stubSession struct{}

func (stubSession) ID() string                                       { return "sess-ws" }
func (stubSession) Navigate(context.Context, string) error           { return nil }
func (stubSession) Screenshot(context.Context) ([]byte, error)       { return []byte("png"), nil }
func (stubSession) Click(context.Context, string) error              { return nil }
func (stubSession) Type(context.Context, string, string) error       { return nil }
func (stubSession) Press(context.Context, string) error              { return nil }
func (stubSession) Scroll(context.Context, int) error                { return nil }
func (stubSession) Close(context.Context) error                      { return nil }
func (stubSession) Observe(context.Context) (*browser.Observation, error) {
	return &browser.Observation{}, nil
}

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Open(context.Context, config.Credentials, session.ModelConfig) (session.Session, error) {
	return stubSession{}, nil
}

type stubAgent struct{}

func (stubAgent) Execute(context.Context, agent.Browser, agent.Task) (*domain.AgentResult, error) {
	ok := true
	return &domain.AgentResult{Success: &ok, Result: "feito", Steps: []domain.AgentStep{{Action: "Clicou em #q"}}}, nil
}

func TestStreamSendsStepsThenResult(t *testing.T) {
	exec := executor.New(executor.Config{
		Credentials:  config.Credentials{BrowserbaseAPIKey: "a", BrowserbaseProjectID: "b", AnthropicAPIKey: "c"},
		MaxSteps:     5,
		Deadline:     5 * time.Second,
		CloseTimeout: time.Second,
	}, stubProvider{}, stubAgent{}, executor.WithLogger(discardLogger()))

	r := chi.NewRouter()
	NewHandler(exec, nil, discardLogger()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/execute", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = ws.CloseNow() }()

	if err := wsjson.Write(ctx, ws, map[string]string{"prompt": "pesquise", "url": "https://google.com"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var messages []map[string]any
	for {
		var msg map[string]any
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			break
		}
		messages = append(messages, msg)
		if msg["type"] == "result" {
			break
		}
	}

	// navigation, agent step, final state, result
	if len(messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d: %v", len(messages), messages)
	}
	for i, msg := range messages[:3] {
		if msg["type"] != "step" {
			t.Fatalf("message %d: expected step, got %v", i, msg["type"])
		}
		passo := msg["passo"].(map[string]any)
		if passo["numero"] != float64(i+1) {
			t.Fatalf("message %d: expected numero %d, got %v", i, i+1, passo["numero"])
		}
	}

	result := messages[3]
	if result["status"] != float64(200) {
		t.Fatalf("Expected status 200, got %v", result["status"])
	}
	body := result["body"].(map[string]any)
	if body["sessionId"] != "sess-ws" || body["sucesso"] != true {
		t.Fatalf("Unexpected result body %v", body)
	}
}

func TestStreamMissingPrompt(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(&fakeRunner{err: executor.ErrMissingPrompt}, nil, discardLogger()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/execute", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = ws.CloseNow() }()

	if err := wsjson.Write(ctx, ws, map[string]string{"url": "https://google.com"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var msg map[string]any
	if err := wsjson.Read(ctx, ws, &msg); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if msg["type"] != "result" || msg["status"] != float64(400) {
		t.Fatalf("Unexpected message %v", msg)
	}
}
