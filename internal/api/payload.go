package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ashureev/promptrunner/internal/config"
	"github.com/ashureev/promptrunner/internal/domain"
	"github.com/ashureev/promptrunner/internal/executor"
)

// isoMillis matches JavaScript's Date.toISOString for UTC times.
const isoMillis = "2006-01-02T15:04:05.000Z"

const (
	msgPromptRequired   = "Prompt é obrigatório"
	msgMethodNotAllowed = "Method not allowed"
	msgUsePost          = "Use POST method"
	msgConfigureEnv     = "Adicione a variável no ambiente do servidor"
)

type examplePayload struct {
	Prompt string `json:"prompt"`
	URL    string `json:"url"`
}

var requestExample = examplePayload{
	Prompt: "Entre no Google e pesquise por IA",
	URL:    "https://google.com",
}

type missingPromptPayload struct {
	Error   string         `json:"error"`
	Example examplePayload `json:"example"`
}

type messagePayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type stepPayload struct {
	Numero    int     `json:"numero"`
	Acao      string  `json:"acao"`
	Print     *string `json:"print"`
	Timestamp string  `json:"timestamp"`
}

type verdictPayload struct {
	Sucesso     *bool              `json:"sucesso"`
	Resumo      string             `json:"resumo"`
	TotalPassos int                `json:"totalPassos"`
	Detalhes    string             `json:"detalhes"`
	StatusFinal domain.FinalStatus `json:"statusFinal"`
}

type successPayload struct {
	Sucesso   bool           `json:"sucesso"`
	SessionID string         `json:"sessionId"`
	Prompt    string         `json:"prompt"`
	URL       *string        `json:"url"`
	Veredito  verdictPayload `json:"veredito"`
	Passos    []stepPayload  `json:"passos"`
	Timestamp string         `json:"timestamp"`
}

type failureVerdictPayload struct {
	Sucesso     bool               `json:"sucesso"`
	Resumo      string             `json:"resumo"`
	StatusFinal domain.FinalStatus `json:"statusFinal"`
}

type failurePayload struct {
	Sucesso      bool                  `json:"sucesso"`
	Erro         string                `json:"erro"`
	ErroCompleto string                `json:"erroCompleto"`
	SessionID    *string               `json:"sessionId"`
	Passos       []stepPayload         `json:"passos"`
	Veredito     failureVerdictPayload `json:"veredito"`
}

// validationResponse maps a Run validation error to its status and body.
func validationResponse(err error) (int, any) {
	var missing *config.MissingCredentialError
	if errors.As(err, &missing) {
		return http.StatusInternalServerError, messagePayload{Error: missing.Error(), Message: msgConfigureEnv}
	}
	return http.StatusBadRequest, missingPromptPayload{Error: msgPromptRequired, Example: requestExample}
}

// outcomeResponse maps a finished run to its status and body.
func outcomeResponse(out *executor.Outcome, now time.Time) (int, any) {
	passos := stepsPayload(out.Steps)

	if !out.Succeeded() {
		return http.StatusInternalServerError, failurePayload{
			Sucesso:      false,
			Erro:         out.ErrorMessage(),
			ErroCompleto: out.ErrorDetail(),
			SessionID:    optional(out.SessionID),
			Passos:       passos,
			Veredito: failureVerdictPayload{
				Sucesso:     false,
				Resumo:      out.FailureSummary(),
				StatusFinal: domain.FinalStatusFailed,
			},
		}
	}

	v := out.Verdict
	return http.StatusOK, successPayload{
		Sucesso:   true,
		SessionID: out.SessionID,
		Prompt:    out.Prompt,
		URL:       optional(out.URL),
		Veredito: verdictPayload{
			Sucesso:     v.Success,
			Resumo:      v.Summary,
			TotalPassos: v.TotalSteps,
			Detalhes:    v.Details,
			StatusFinal: v.FinalStatus,
		},
		Passos:    passos,
		Timestamp: formatTime(now),
	}
}

func stepsPayload(steps []domain.StepRecord) []stepPayload {
	out := make([]stepPayload, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepToPayload(s))
	}
	return out
}

func stepToPayload(s domain.StepRecord) stepPayload {
	return stepPayload{
		Numero:    s.Number,
		Acao:      s.Action,
		Print:     optional(s.DataURI()),
		Timestamp: formatTime(s.Timestamp),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
