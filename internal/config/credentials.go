package config

import "fmt"

// Environment variable names of the required secrets.
const (
	EnvBrowserbaseAPIKey    = "BROWSERBASE_API_KEY"
	EnvBrowserbaseProjectID = "BROWSERBASE_PROJECT_ID"
	EnvAnthropicAPIKey      = "ANTHROPIC_API_KEY"
)

// Credentials holds the external secrets an execution needs.
type Credentials struct {
	BrowserbaseAPIKey    string
	BrowserbaseProjectID string
	AnthropicAPIKey      string
}

// MissingCredentialError reports the first required secret that is not set.
type MissingCredentialError struct {
	Name string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s não configurada", e.Name)
}

// Value returns the secret stored under the given environment name.
func (c Credentials) Value(name string) string {
	switch name {
	case EnvBrowserbaseAPIKey:
		return c.BrowserbaseAPIKey
	case EnvBrowserbaseProjectID:
		return c.BrowserbaseProjectID
	case EnvAnthropicAPIKey:
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// Check verifies the named secrets in order and stops at the first missing one.
// With no names it checks session key, project id and LLM key.
func (c Credentials) Check(names ...string) error {
	if len(names) == 0 {
		names = []string{EnvBrowserbaseAPIKey, EnvBrowserbaseProjectID, EnvAnthropicAPIKey}
	}
	for _, name := range names {
		if c.Value(name) == "" {
			return &MissingCredentialError{Name: name}
		}
	}
	return nil
}

// Preview returns the first n characters of a secret followed by "...",
// safe to log. Empty secrets yield "".
func Preview(secret string, n int) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= n {
		return secret[:len(secret)/2] + "..."
	}
	return secret[:n] + "..."
}
