package instrument

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"offinstr/internal/archive"
	"offinstr/internal/logging"
)

// Status is the result of transforming one unit.
type Status string

const (
	StatusInstrumented Status = "instrumented"
	StatusFailed       Status = "failed"
	StatusIncompatible Status = "incompatible"
)

// Outcome records what happened to one unit.
type Outcome struct {
	Unit   Unit   `json:"unit"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Bytes  int    `json:"bytes,omitempty"`
}

// Counts tallies outcomes by status.
type Counts struct {
	Instrumented int `json:"instrumented"`
	Failed       int `json:"failed"`
	Incompatible int `json:"incompatible"`
}

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) Counts {
	var c Counts
	for _, o := range outcomes {
		switch o.Status {
		case StatusInstrumented:
			c.Instrumented++
		case StatusFailed:
			c.Failed++
		case StatusIncompatible:
			c.Incompatible++
		}
	}
	return c
}

// Trigger runs a Transformer over every compiled unit of an archive.
type Trigger struct {
	t Transformer
}

// NewTrigger creates a trigger for t.
func NewTrigger(t Transformer) *Trigger {
	return &Trigger{t: t}
}

// Run transforms every compiled unit of archivePath and writes each result
// to outDir under the unit's entry path. A unit that fails is recorded and
// skipped; the remaining units are still attempted. The returned outcomes are
// in archive order. An archive without units yields no outcomes and no error.
func (tr *Trigger) Run(ctx context.Context, archivePath, outDir string) ([]Outcome, error) {
	r, err := archive.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var units []Unit
	for _, e := range r.Entries() {
		if e.Dir {
			continue
		}
		u, ok := UnitFromEntry(e.Name)
		if !ok {
			logging.InstrumentDebug("skipping non-unit entry %s", e.Name)
			continue
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		logging.InstrumentWarn("no compiled units found in %s", archivePath)
		return nil, nil
	}

	timer := logging.StartTimer(logging.CategoryInstrument, fmt.Sprintf("transform %d units of %s", len(units), filepath.Base(archivePath)))
	defer timer.Stop()

	outcomes := make([]Outcome, 0, len(units))
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, tr.runUnit(ctx, r, u, outDir))
	}

	c := Summarize(outcomes)
	logging.Instrument("%s: %d instrumented, %d failed, %d incompatible",
		filepath.Base(archivePath), c.Instrumented, c.Failed, c.Incompatible)
	return outcomes, nil
}

func (tr *Trigger) runUnit(ctx context.Context, r *archive.Reader, u Unit, outDir string) Outcome {
	failed := func(err error) Outcome {
		logging.InstrumentWarn("failed to instrument %s: %v", u.Name, err)
		return Outcome{Unit: u, Status: StatusFailed, Reason: err.Error()}
	}

	data, err := r.ReadEntry(u.EntryPath)
	if err != nil {
		return failed(err)
	}

	out, err := tr.t.Transform(ctx, u, data)
	if errors.Is(err, ErrUnsupportedClassVersion) {
		logging.InstrumentWarn("%s was compiled for an unsupported class file version, leaving it uninstrumented: %v", u.Name, err)
		return Outcome{Unit: u, Status: StatusIncompatible, Reason: err.Error()}
	}
	if err != nil {
		return failed(err)
	}

	if err := writeUnit(outDir, u.EntryPath, out); err != nil {
		return failed(err)
	}
	logging.InstrumentDebug("instrumented %s (%d -> %d bytes)", u.Name, len(data), len(out))
	return Outcome{Unit: u, Status: StatusInstrumented, Bytes: len(out)}
}

func writeUnit(outDir, entryPath string, data []byte) error {
	rel := filepath.FromSlash(entryPath)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("%q: %w", entryPath, archive.ErrUnsafeEntry)
	}
	dest := filepath.Join(outDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
