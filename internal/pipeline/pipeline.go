// Package pipeline sequences offline instrumentation over a batch of
// archives: agent install, stage preparation, per-archive transform,
// reconciliation, native injection, merge, pack and in-place replacement.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/google/uuid"

	"offinstr/internal/archive"
	"offinstr/internal/cleanup"
	"offinstr/internal/instrument"
	"offinstr/internal/logging"
	"offinstr/internal/native"
	"offinstr/internal/stage"
)

// Options configures an Instrumentor.
type Options struct {
	// InjectNative places the runtime's native libraries into every archive.
	InjectNative bool
	// ABI selects the native payload set; lib/<ABI>/ is always created.
	ABI string

	// Resources holds the runtime distribution archive.
	Resources fs.FS
	// Distribution is the distribution archive's path inside Resources.
	Distribution string
	// BootstrapEntry and RuntimeEntry are archive entries of the
	// distribution.
	BootstrapEntry string
	RuntimeEntry   string

	// IsolateArchives resets the stage before every archive. When false the
	// stage is only cleared once per batch and archives rely on
	// reconciliation alone.
	IsolateArchives bool

	// Tracker receives every temp file the run creates.
	Tracker cleanup.Tracker
}

// Dependencies are the runtime archives extracted for a run.
type Dependencies struct {
	Distribution string `json:"distribution"`
	Bootstrap    string `json:"bootstrap"`
	Runtime      string `json:"runtime"`
}

// Instrumentor instruments archives in place.
type Instrumentor struct {
	agent   instrument.Agent
	stage   *stage.Stage
	opts    Options
	trigger *instrument.Trigger
}

// New creates an Instrumentor that stages work in st.
func New(agent instrument.Agent, st *stage.Stage, opts Options) *Instrumentor {
	return &Instrumentor{
		agent:   agent,
		stage:   st,
		opts:    opts,
		trigger: instrument.NewTrigger(agent),
	}
}

// Prepare extracts the distribution archive from the resource FS and the
// bootstrap and runtime archives from it. Missing resources are fatal.
func (in *Instrumentor) Prepare() (Dependencies, error) {
	var deps Dependencies
	t := cleanup.Or(in.opts.Tracker)

	dist, err := archive.ExtractResource(in.opts.Resources, in.opts.Distribution, t)
	if err != nil {
		return deps, err
	}
	deps.Distribution = dist

	for _, dep := range []struct {
		entry string
		dest  *string
	}{
		{in.opts.BootstrapEntry, &deps.Bootstrap},
		{in.opts.RuntimeEntry, &deps.Runtime},
	} {
		p, err := archive.ExtractEntryToTemp(dist, dep.entry, t)
		if err != nil {
			if errors.Is(err, archive.ErrEntryNotFound) {
				return deps, fmt.Errorf("%s in %s: %w", dep.entry, path.Base(in.opts.Distribution), archive.ErrResourceMissing)
			}
			return deps, err
		}
		*dep.dest = p
	}

	logging.PipelineDebug("prepared dependencies: bootstrap=%s runtime=%s", deps.Bootstrap, deps.Runtime)
	return deps, nil
}

// InstrumentArchives instruments every archive of paths in order, replacing
// each file with its instrumented counterpart. A unit that cannot be
// transformed is left as it was; any other failure stops the batch and is
// returned together with the report so far.
func (in *Instrumentor) InstrumentArchives(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{
		RunID:        uuid.NewString(),
		Agent:        in.agent.Name(),
		ABI:          in.opts.ABI,
		InjectNative: in.opts.InjectNative,
		StartedAt:    time.Now().UTC(),
	}
	fail := func(err error) (*Report, error) {
		report.finish(err)
		logging.PipelineError("instrumentation failed: %v", err)
		return report, err
	}

	timer := logging.StartTimer(logging.CategoryPipeline, fmt.Sprintf("instrument %d archives", len(paths)))
	defer timer.StopWithInfo()

	if err := in.agent.Install(ctx); err != nil {
		return fail(fmt.Errorf("install agent: %w", err))
	}

	if _, err := in.stage.ClearTopLevel(); err != nil {
		return fail(err)
	}

	deps, err := in.Prepare()
	if err != nil {
		return fail(err)
	}
	report.Dependencies = deps

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		result, err := in.instrumentArchive(ctx, p, deps)
		report.Archives = append(report.Archives, result)
		if err != nil {
			return fail(fmt.Errorf("instrument %s: %w", p, err))
		}
	}

	report.finish(nil)
	logging.Pipeline("%s", report.Summary())
	return report, nil
}

func (in *Instrumentor) instrumentArchive(ctx context.Context, archivePath string, deps Dependencies) (ArchiveResult, error) {
	result := ArchiveResult{Path: archivePath}
	fail := func(err error) (ArchiveResult, error) {
		result.Error = err.Error()
		return result, err
	}
	logging.Pipeline("instrumenting %s", archivePath)

	if in.opts.IsolateArchives {
		if err := in.stage.Reset(); err != nil {
			return fail(err)
		}
	}
	root := in.stage.Root()

	outcomes, err := in.trigger.Run(ctx, archivePath, root)
	result.Units = outcomes
	result.Counts = instrument.Summarize(outcomes)
	if err != nil {
		return fail(err)
	}

	if result.Reconcile, err = in.stage.Reconcile(archivePath); err != nil {
		return fail(err)
	}

	if _, err := in.stage.EnsureNativeDir(in.opts.ABI); err != nil {
		return fail(err)
	}
	if in.opts.InjectNative {
		if result.Native, err = native.Inject(deps.Runtime, root, in.opts.ABI); err != nil {
			return fail(err)
		}
	}

	if result.Merge, err = archive.MergeToDirectory(archivePath, root); err != nil {
		return fail(err)
	}

	manifest, err := archive.ReadManifest(archivePath)
	if err != nil {
		return fail(err)
	}
	result.ManifestPresent = manifest != nil

	packed, err := archive.PackDirectory(root, manifest,
		archive.WithPassthrough(archivePath),
		archive.WithTracker(in.opts.Tracker))
	if err != nil {
		return fail(err)
	}
	if err := archive.ReplaceFile(packed, archivePath); err != nil {
		return fail(err)
	}

	result.Success = true
	return result, nil
}
