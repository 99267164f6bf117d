package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Report totals one rule run. Failures keeps the failed outcomes so the
// JSON report shows what went wrong, not just how often.
type Report struct {
	Processed int       `json:"processed"`
	Matched   int       `json:"matched"`
	Applied   int       `json:"applied"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Failure is one failed action in the report.
type Failure struct {
	MessageID string `json:"message_id"`
	Rule      string `json:"rule"`
	Action    string `json:"action"`
	Error     string `json:"error"`
}

func (r *Report) record(rule string, out Outcome) {
	if out.Err != nil {
		r.Failed++
		r.Failures = append(r.Failures, Failure{
			MessageID: string(out.MessageID),
			Rule:      rule,
			Action:    out.Action.String(),
			Error:     out.Err.Error(),
		})
		return
	}
	r.Applied++
}

// WriteJSON serializes the report to disk. The path must stay inside the
// working directory.
func WriteJSON(rep Report, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	abs := filepath.Join(wd, clean)
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(rep); encodeErr != nil {
		return fmt.Errorf("encode report: %w", encodeErr)
	}
	return nil
}
