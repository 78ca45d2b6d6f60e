package instrument

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"offinstr/internal/logging"
	"offinstr/internal/tactile"
)

// ExecAgentConfig configures an ExecAgent.
type ExecAgentConfig struct {
	// Command is the transformer executable. It reads a class file on stdin
	// and writes the transformed class file to stdout.
	Command string
	// Args may reference {unit} (dotted name) and {entry} (entry path).
	Args []string
	// UnitTimeout bounds one Transform call.
	UnitTimeout time.Duration
	// MaxClassMajor rejects newer class files without invoking the
	// command. Zero disables the check.
	MaxClassMajor int
}

// ExecAgent runs an external transformer process once per unit.
type ExecAgent struct {
	executor tactile.Executor
	cfg      ExecAgentConfig

	once       sync.Once
	binary     string
	installErr error
}

// NewExecAgent creates an agent that runs cfg.Command through executor.
func NewExecAgent(executor tactile.Executor, cfg ExecAgentConfig) *ExecAgent {
	return &ExecAgent{executor: executor, cfg: cfg}
}

// Name implements Agent.
func (a *ExecAgent) Name() string {
	return "exec:" + a.cfg.Command
}

// Install resolves the transformer binary. Only the first call does work;
// later calls return its result.
func (a *ExecAgent) Install(ctx context.Context) error {
	a.once.Do(func() {
		if strings.TrimSpace(a.cfg.Command) == "" {
			a.installErr = errors.New("exec agent: no command configured")
			return
		}
		path, err := a.executor.LookPath(a.cfg.Command)
		if err != nil {
			a.installErr = fmt.Errorf("exec agent: resolve %s: %w", a.cfg.Command, err)
			return
		}
		a.binary = path
		logging.Instrument("installed agent %s", path)
	})
	return a.installErr
}

// Transform implements Transformer.
func (a *ExecAgent) Transform(ctx context.Context, unit Unit, data []byte) ([]byte, error) {
	if a.binary == "" {
		return nil, ErrAgentNotInstalled
	}
	if a.cfg.MaxClassMajor > 0 {
		if major, _, err := ClassVersion(data); err == nil && int(major) > a.cfg.MaxClassMajor {
			return nil, fmt.Errorf("class major %d > %d: %w", major, a.cfg.MaxClassMajor, ErrUnsupportedClassVersion)
		}
	}

	res, err := a.executor.Execute(ctx, tactile.Command{
		Binary:    a.binary,
		Arguments: expandArgs(a.cfg.Args, unit),
		Stdin:     data,
		Timeout:   a.cfg.UnitTimeout,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case !res.Success:
		return nil, fmt.Errorf("run agent: %s", res.Error)
	case res.Killed:
		return nil, fmt.Errorf("agent killed: %s", res.KillReason)
	case res.ExitCode != 0:
		if strings.Contains(res.Stderr, "UnsupportedClassVersionError") {
			return nil, fmt.Errorf("%s: %w", firstLine(res.Stderr), ErrUnsupportedClassVersion)
		}
		return nil, fmt.Errorf("agent exited %d: %s", res.ExitCode, firstLine(res.Stderr))
	case res.Truncated:
		return nil, fmt.Errorf("agent output exceeded capture limit")
	case res.Stdout == "":
		return nil, fmt.Errorf("agent produced no output")
	}
	return []byte(res.Stdout), nil
}

func expandArgs(args []string, unit Unit) []string {
	r := strings.NewReplacer("{unit}", unit.Name, "{entry}", unit.EntryPath)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = r.Replace(arg)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
