package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"offinstr/internal/archive"
	"offinstr/internal/instrument"
	"offinstr/internal/stage"
)

// Report describes one InstrumentArchives run.
type Report struct {
	RunID        string          `json:"run_id"`
	Agent        string          `json:"agent"`
	ABI          string          `json:"abi"`
	InjectNative bool            `json:"inject_native"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Dependencies Dependencies    `json:"dependencies"`
	Archives     []ArchiveResult `json:"archives"`
	Success      bool            `json:"success"`
	Error        string          `json:"error,omitempty"`
}

// ArchiveResult describes the processing of one archive.
type ArchiveResult struct {
	Path            string               `json:"path"`
	Units           []instrument.Outcome `json:"units"`
	Counts          instrument.Counts    `json:"counts"`
	Reconcile       stage.ReconcileStats `json:"reconcile"`
	Merge           archive.MergeStats   `json:"merge"`
	Native          []string             `json:"native,omitempty"`
	ManifestPresent bool                 `json:"manifest_present"`
	Success         bool                 `json:"success"`
	Error           string               `json:"error,omitempty"`
}

func (r *Report) finish(err error) {
	r.FinishedAt = time.Now().UTC()
	r.Success = err == nil
	if err != nil {
		r.Error = err.Error()
	}
}

// Totals sums unit outcomes over every archive.
func (r *Report) Totals() instrument.Counts {
	var c instrument.Counts
	for _, a := range r.Archives {
		c.Instrumented += a.Counts.Instrumented
		c.Failed += a.Counts.Failed
		c.Incompatible += a.Counts.Incompatible
	}
	return c
}

// Summary is a one-line human readable digest.
func (r *Report) Summary() string {
	c := r.Totals()
	status := "ok"
	if !r.Success {
		status = "failed"
	}
	return fmt.Sprintf("run %s %s: %d archives, %d units instrumented, %d failed, %d incompatible",
		r.RunID, status, len(r.Archives), c.Instrumented, c.Failed, c.Incompatible)
}

// CanonicalJSON encodes the report as RFC 8785 canonical JSON.
func (r *Report) CanonicalJSON() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize report: %w", err)
	}
	return out, nil
}

// WriteJSON writes CanonicalJSON to path.
func (r *Report) WriteJSON(path string) error {
	data, err := r.CanonicalJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
