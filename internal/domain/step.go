// Package domain contains core domain types for the prompt runner.
package domain

import (
	"encoding/base64"
	"time"
)

// ScreenshotMIME is the media type of every captured screenshot.
const ScreenshotMIME = "image/png"

// StepRecord is one captured moment of session state in the step timeline.
type StepRecord struct {
	Number     int
	Action     string
	Screenshot []byte
	Timestamp  time.Time
}

// HasScreenshot returns true if an image was captured for the step.
func (s StepRecord) HasScreenshot() bool {
	return len(s.Screenshot) > 0
}

// DataURI renders the screenshot as a data URI, or "" when none was captured.
func (s StepRecord) DataURI() string {
	if !s.HasScreenshot() {
		return ""
	}
	return "data:" + ScreenshotMIME + ";base64," + base64.StdEncoding.EncodeToString(s.Screenshot)
}
