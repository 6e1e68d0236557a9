package executor

import (
	"errors"

	"github.com/ashureev/promptrunner/internal/config"
)

// ErrMissingPrompt is returned when a request carries no prompt.
var ErrMissingPrompt = errors.New("prompt is required")

// Validate checks the prompt first, then each required credential in order,
// stopping at the first failure. It performs no remote calls. Only an empty
// prompt is missing; whitespace is passed to the agent as is.
// The credential failure is a *config.MissingCredentialError.
func Validate(req Request, creds config.Credentials, required []string) error {
	if req.Prompt == "" {
		return ErrMissingPrompt
	}
	return creds.Check(required...)
}
