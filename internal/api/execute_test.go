package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/promptrunner/internal/config"
	"github.com/ashureev/promptrunner/internal/domain"
	"github.com/ashureev/promptrunner/internal/executor"
)

func newTestRouter(runner Runner, repo *fakeRepo) http.Handler {
	r := chi.NewRouter()
	var h *Handler
	if repo != nil {
		h = NewHandler(runner, repo, discardLogger())
	} else {
		h = NewHandler(runner, nil, discardLogger())
	}
	h.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Body.Len() == 0 {
		return w, nil
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return w, got
}

func boolPtr(v bool) *bool { return &v }

func TestExecuteMethodNotAllowed(t *testing.T) {
	runner := &fakeRunner{}
	w, got := doRequest(t, newTestRouter(runner, nil), http.MethodGet, "/api/execute", "")

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", w.Code)
	}
	if got["error"] != "Method not allowed" || got["message"] != "Use POST method" {
		t.Fatalf("Unexpected body %v", got)
	}
	if runner.calls != 0 {
		t.Fatal("runner must not be called")
	}
}

func TestExecuteOptions(t *testing.T) {
	w, got := doRequest(t, newTestRouter(&fakeRunner{}, nil), http.MethodOptions, "/api/execute", "")
	if w.Code != http.StatusOK || got != nil {
		t.Fatalf("Expected empty 200, got %d %v", w.Code, got)
	}
}

func TestExecuteMissingPrompt(t *testing.T) {
	for _, body := range []string{`{"url":"https://google.com"}`, `not json`} {
		runner := &fakeRunner{err: executor.ErrMissingPrompt}
		w, got := doRequest(t, newTestRouter(runner, nil), http.MethodPost, "/api/execute", body)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400 for %q, got %d", body, w.Code)
		}
		if got["error"] != "Prompt é obrigatório" {
			t.Fatalf("Unexpected error %v", got["error"])
		}
		example, _ := got["example"].(map[string]any)
		if example["prompt"] != "Entre no Google e pesquise por IA" || example["url"] != "https://google.com" {
			t.Fatalf("Unexpected example %v", got["example"])
		}
	}
}

func TestExecuteMissingCredential(t *testing.T) {
	runner := &fakeRunner{err: &config.MissingCredentialError{Name: config.EnvAnthropicAPIKey}}
	w, got := doRequest(t, newTestRouter(runner, nil), http.MethodPost, "/api/execute", `{"prompt":"x"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	if got["error"] != "ANTHROPIC_API_KEY não configurada" || got["message"] == "" {
		t.Fatalf("Unexpected body %v", got)
	}
	if _, ok := got["passos"]; ok {
		t.Fatal("configuration errors must not carry passos")
	}
}

func TestExecuteSuccessPayload(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	runner := &fakeRunner{out: &executor.Outcome{
		ID:        "exec-1",
		SessionID: "sess-1",
		Prompt:    "pesquise IA",
		Steps: []domain.StepRecord{
			{Number: 1, Action: "Estado final da página", Screenshot: []byte("png"), Timestamp: ts},
		},
		Verdict: domain.Verdict{
			Summary:     "Tarefa executada",
			TotalSteps:  1,
			Details:     "Execução concluída",
			FinalStatus: domain.FinalStatusCompletedWithCaveats,
		},
	}}

	w, got := doRequest(t, newTestRouter(runner, nil), http.MethodPost, "/api/execute", `{"prompt":"pesquise IA"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if runner.got.Prompt != "pesquise IA" {
		t.Errorf("Runner received %+v", runner.got)
	}
	if got["sucesso"] != true || got["sessionId"] != "sess-1" || got["prompt"] != "pesquise IA" {
		t.Errorf("Unexpected envelope %v", got)
	}
	if v, ok := got["url"]; !ok || v != nil {
		t.Errorf("Expected url null, got %v", v)
	}
	if _, err := time.Parse(time.RFC3339, got["timestamp"].(string)); err != nil {
		t.Errorf("Invalid timestamp: %v", err)
	}

	veredito := got["veredito"].(map[string]any)
	if v, ok := veredito["sucesso"]; !ok || v != nil {
		t.Errorf("Expected unknown success to be null, got %v", v)
	}
	if veredito["statusFinal"] != "⚠️ Concluído com ressalvas" || veredito["totalPassos"] != float64(1) {
		t.Errorf("Unexpected veredito %v", veredito)
	}

	passos := got["passos"].([]any)
	passo := passos[0].(map[string]any)
	if passo["numero"] != float64(1) || passo["acao"] != "Estado final da página" {
		t.Errorf("Unexpected passo %v", passo)
	}
	if passo["print"] != "data:image/png;base64,cG5n" {
		t.Errorf("Unexpected print %v", passo["print"])
	}
	if passo["timestamp"] != "2025-03-01T12:00:00.000Z" {
		t.Errorf("Unexpected step timestamp %v", passo["timestamp"])
	}
}

func TestExecuteFailurePayload(t *testing.T) {
	runner := &fakeRunner{out: &executor.Outcome{
		ID:     "exec-2",
		Prompt: "x",
		Steps: []domain.StepRecord{
			{Number: 1, Action: "Navegou para https://google.com", Timestamp: time.Now()},
		},
		Err: errors.New("agent crashed"),
	}}

	w, got := doRequest(t, newTestRouter(runner, nil), http.MethodPost, "/execute", `{"prompt":"x","url":"https://google.com"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	if got["sucesso"] != false || got["erro"] != "agent crashed" || got["erroCompleto"] == "" {
		t.Errorf("Unexpected envelope %v", got)
	}
	if v, ok := got["sessionId"]; !ok || v != nil {
		t.Errorf("Expected sessionId null, got %v", v)
	}

	passo := got["passos"].([]any)[0].(map[string]any)
	if v, ok := passo["print"]; !ok || v != nil {
		t.Errorf("Expected print null without screenshot, got %v", v)
	}

	veredito := got["veredito"].(map[string]any)
	if veredito["sucesso"] != false || veredito["resumo"] != "Erro durante execução: agent crashed" || veredito["statusFinal"] != "❌ Falhou" {
		t.Errorf("Unexpected veredito %v", veredito)
	}
}

func TestExecuteFailureWithoutStepsHasEmptyPassos(t *testing.T) {
	runner := &fakeRunner{out: &executor.Outcome{ID: "exec-3", Prompt: "x", Err: errors.New("session init failed")}}
	w, _ := doRequest(t, newTestRouter(runner, nil), http.MethodPost, "/api/execute", `{"prompt":"x"}`)

	if !bytes.Contains(w.Body.Bytes(), []byte(`"passos":[]`)) {
		t.Fatalf("Expected empty passos array, got %s", w.Body.String())
	}
}

func TestExecutionsHistory(t *testing.T) {
	repo := newFakeRepo(&domain.Execution{ID: "exec-1", Prompt: "x", FinalStatus: domain.FinalStatusCompleted, Success: true})
	router := newTestRouter(&fakeRunner{}, repo)

	w, got := doRequest(t, router, http.MethodGet, "/api/executions?limit=5", "")
	if w.Code != http.StatusOK || got["count"] != float64(1) {
		t.Fatalf("Unexpected list response %d %v", w.Code, got)
	}
	if repo.limit != 5 {
		t.Errorf("Expected limit 5, got %d", repo.limit)
	}

	w, got = doRequest(t, router, http.MethodGet, "/api/executions/exec-1", "")
	if w.Code != http.StatusOK || got["id"] != "exec-1" {
		t.Fatalf("Unexpected get response %d %v", w.Code, got)
	}

	w, _ = doRequest(t, router, http.MethodGet, "/api/executions/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}

	w, _ = doRequest(t, router, http.MethodGet, "/api/executions?limit=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for bad limit, got %d", w.Code)
	}
}

func TestExecutionsHistoryDisabled(t *testing.T) {
	w, _ := doRequest(t, newTestRouter(&fakeRunner{}, nil), http.MethodGet, "/api/executions", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 when history is disabled, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		repo     *fakeRepo
		wantCode int
		wantDB   string
	}{
		{name: "disabled", repo: nil, wantCode: http.StatusOK, wantDB: "disabled"},
		{name: "ok", repo: newFakeRepo(), wantCode: http.StatusOK, wantDB: "ok"},
		{name: "down", repo: &fakeRepo{pingErr: errors.New("closed")}, wantCode: http.StatusServiceUnavailable, wantDB: "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h *HealthHandler
			if tt.repo != nil {
				h = NewHealthHandler(tt.repo, "browserbase")
			} else {
				h = NewHealthHandler(nil, "browserbase")
			}
			r := chi.NewRouter()
			h.RegisterHealth(r)

			w, got := doRequest(t, r, http.MethodGet, "/health", "")
			if w.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d", tt.wantCode, w.Code)
			}
			checks := got["checks"].(map[string]any)
			if checks["database"] != tt.wantDB {
				t.Fatalf("Expected database=%s, got %v", tt.wantDB, checks["database"])
			}
		})
	}
}
