package common

import (
	"encoding/json"
	"os"
	"time"
)

// CIResult is the machine-readable line the ops CLIs emit in --ci mode, so a
// pipeline step can parse the outcome instead of scraping TUI output.
type CIResult struct {
	OK      bool     `json:"ok"`
	Title   string   `json:"title"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
	TS      string   `json:"ts"`
}

func PrintCIResult(ok bool, title string, details []string, err error) {
	result := CIResult{
		OK:      ok,
		Title:   title,
		Details: details,
		TS:      time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		result.Error = err.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}
