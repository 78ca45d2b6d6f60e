package packager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offinstr/internal/pipeline"
	"offinstr/internal/tactile"
)

type fakePackager struct {
	name      string
	available bool
	native    bool
	ran       [][]string
	err       error
}

func (f *fakePackager) Name() string { return f.name }
func (f *fakePackager) Available(context.Context) bool { return f.available }
func (f *fakePackager) InjectNative() bool { return f.native }
func (f *fakePackager) Run(_ context.Context, args []string) error {
	f.ran = append(f.ran, args)
	return f.err
}

type fakePipeline struct {
	paths [][]string
	err   error
}

func (f *fakePipeline) InstrumentArchives(_ context.Context, paths []string) (*pipeline.Report, error) {
	f.paths = append(f.paths, paths)
	return &pipeline.Report{RunID: "run", Success: f.err == nil}, f.err
}

type fakeExecutor struct {
	known    map[string]bool
	commands []tactile.Command
	result   tactile.ExecutionResult
}

func (f *fakeExecutor) Execute(_ context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
	f.commands = append(f.commands, cmd)
	res := f.result
	return &res, nil
}

func (f *fakeExecutor) Capabilities() tactile.ExecutorCapabilities {
	return tactile.ExecutorCapabilities{Name: "fake"}
}

func (f *fakeExecutor) LookPath(binary string) (string, error) {
	if f.known[binary] {
		return "/usr/bin/" + binary, nil
	}
	return "", errors.New("not found")
}

var wrapArgs = []string{"-injars", "app.jar", "lib.jar", "-outjars", "out.jar"}

func TestAdapter_FallsBackToSecondPackager(t *testing.T) {
	platform := &fakePackager{name: "platform"}
	generic := &fakePackager{name: "generic", available: true, native: true}
	pl := &fakePipeline{}
	var gotNative []bool

	a := &Adapter{
		Packagers: []Packager{platform, generic},
		NewPipeline: func(injectNative bool) (Pipeline, error) {
			gotNative = append(gotNative, injectNative)
			return pl, nil
		},
	}
	require.NoError(t, a.Run(context.Background(), wrapArgs))

	assert.Equal(t, []bool{true}, gotNative)
	assert.Equal(t, [][]string{{"app.jar", "lib.jar"}}, pl.paths)
	assert.Empty(t, platform.ran)
	assert.Equal(t, [][]string{wrapArgs}, generic.ran, "arguments passed through unchanged")
}

func TestAdapter_PrefersPlatformPackager(t *testing.T) {
	platform := &fakePackager{name: "platform", available: true}
	generic := &fakePackager{name: "generic", available: true, native: true}
	var gotNative bool
	var report *pipeline.Report

	a := &Adapter{
		Packagers: []Packager{platform, generic},
		NewPipeline: func(injectNative bool) (Pipeline, error) {
			gotNative = injectNative
			return &fakePipeline{}, nil
		},
		OnReport: func(r *pipeline.Report) { report = r },
	}
	require.NoError(t, a.Run(context.Background(), wrapArgs))

	assert.False(t, gotNative)
	assert.Len(t, platform.ran, 1)
	assert.Empty(t, generic.ran)
	require.NotNil(t, report)
	assert.Equal(t, "run", report.RunID)
}

func TestAdapter_PipelineFailureSkipsDispatch(t *testing.T) {
	generic := &fakePackager{name: "generic", available: true}
	a := &Adapter{
		Packagers: []Packager{generic},
		NewPipeline: func(bool) (Pipeline, error) {
			return &fakePipeline{err: errors.New("pack failed")}, nil
		},
	}

	err := a.Run(context.Background(), wrapArgs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInstrumentation)
	assert.Contains(t, err.Error(), "pack failed")
	assert.Empty(t, generic.ran)
}

func TestAdapter_NoPackager(t *testing.T) {
	called := false
	a := &Adapter{
		Packagers: []Packager{&fakePackager{name: "platform"}, &fakePackager{name: "generic"}},
		NewPipeline: func(bool) (Pipeline, error) {
			called = true
			return &fakePipeline{}, nil
		},
	}

	assert.ErrorIs(t, a.Run(context.Background(), wrapArgs), ErrNoPackager)
	assert.False(t, called, "nothing is instrumented without a packager")
}

func TestAdapter_PropagatesPackagerExit(t *testing.T) {
	generic := &fakePackager{name: "generic", available: true, err: &ExitError{Packager: "generic", Code: 3}}
	a := &Adapter{
		Packagers:   []Packager{generic},
		NewPipeline: func(bool) (Pipeline, error) { return &fakePipeline{}, nil },
	}

	err := a.Run(context.Background(), wrapArgs)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
}

func TestPlatformPackager(t *testing.T) {
	fe := &fakeExecutor{known: map[string]bool{"r8wrapper": true}, result: tactile.ExecutionResult{Success: true}}
	p := NewPlatformPackager(fe, "r8wrapper", Streams{})

	assert.True(t, p.Available(context.Background()))
	assert.False(t, p.InjectNative())
	require.NoError(t, p.Run(context.Background(), wrapArgs))
	require.Len(t, fe.commands, 1)
	assert.Equal(t, "r8wrapper", fe.commands[0].Binary)
	assert.Equal(t, wrapArgs, fe.commands[0].Arguments)

	assert.False(t, NewPlatformPackager(fe, "missing", Streams{}).Available(context.Background()))
}

func TestGenericPackager(t *testing.T) {
	r8 := filepath.Join(t.TempDir(), "r8.jar")
	require.NoError(t, os.WriteFile(r8, []byte("PK"), 0644))
	fe := &fakeExecutor{known: map[string]bool{"java": true}, result: tactile.ExecutionResult{Success: true, ExitCode: 2}}
	p := NewGenericPackager(fe, "java", r8, "com.android.tools.r8.R8", Streams{})

	assert.True(t, p.Available(context.Background()))
	assert.True(t, p.InjectNative())

	err := p.Run(context.Background(), wrapArgs)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Equal(t, "generic exited with status 2", err.Error())

	require.Len(t, fe.commands, 1)
	assert.Equal(t, append([]string{"-cp", r8, "com.android.tools.r8.R8"}, wrapArgs...), fe.commands[0].Arguments)

	assert.False(t, NewGenericPackager(fe, "java", "", "com.android.tools.r8.R8", Streams{}).Available(context.Background()))
	assert.False(t, NewGenericPackager(fe, "java", filepath.Join(t.TempDir(), "absent.jar"), "com.android.tools.r8.R8", Streams{}).Available(context.Background()))
}
