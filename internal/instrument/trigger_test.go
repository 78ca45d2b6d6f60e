package instrument

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offinstr/internal/testutil/jartest"
)

type recordingTransformer struct {
	seen []string
	fail map[string]error
}

func (r *recordingTransformer) Transform(_ context.Context, u Unit, data []byte) ([]byte, error) {
	r.seen = append(r.seen, u.Name)
	if err := r.fail[u.Name]; err != nil {
		return nil, err
	}
	return append([]byte("instrumented:"), data...), nil
}

func threeUnitJar(t *testing.T) string {
	t.Helper()
	return jartest.Write(t, filepath.Join(t.TempDir(), "three.jar"),
		jartest.Entry{Name: "META-INF/MANIFEST.MF", Data: jartest.Manifest},
		jartest.Entry{Name: "p/"},
		jartest.Entry{Name: "p/One.class", Data: "1"},
		jartest.Entry{Name: "p/Two.class", Data: "2"},
		jartest.Entry{Name: "p/readme.txt", Data: "r"},
		jartest.Entry{Name: "p/Three.class", Data: "3"},
	)
}

func TestTrigger_ContinuesPastFailures(t *testing.T) {
	rt := &recordingTransformer{fail: map[string]error{"p.Two": errors.New("verify error")}}
	out := t.TempDir()

	outcomes, err := NewTrigger(rt).Run(context.Background(), threeUnitJar(t), out)
	require.NoError(t, err)

	assert.Equal(t, []string{"p.One", "p.Two", "p.Three"}, rt.seen)
	require.Len(t, outcomes, 3)
	assert.Equal(t, StatusInstrumented, outcomes[0].Status)
	assert.Equal(t, StatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Reason, "verify error")
	assert.Equal(t, StatusInstrumented, outcomes[2].Status)

	assert.Equal(t, []string{"p/One.class", "p/Three.class"}, jartest.Files(t, out))
	data, err := os.ReadFile(filepath.Join(out, "p", "One.class"))
	require.NoError(t, err)
	assert.Equal(t, "instrumented:1", string(data))
}

func TestTrigger_IncompatibleUnits(t *testing.T) {
	rt := &recordingTransformer{fail: map[string]error{
		"p.One": fmt.Errorf("major 70: %w", ErrUnsupportedClassVersion),
	}}

	outcomes, err := NewTrigger(rt).Run(context.Background(), threeUnitJar(t), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, Counts{Instrumented: 2, Incompatible: 1}, Summarize(outcomes))
	assert.Equal(t, StatusIncompatible, outcomes[0].Status)
}

func TestTrigger_NoUnits(t *testing.T) {
	jar := jartest.Write(t, filepath.Join(t.TempDir(), "res.jar"),
		jartest.Entry{Name: "res/a.txt", Data: "a"})
	rt := &recordingTransformer{}
	out := t.TempDir()

	outcomes, err := NewTrigger(rt).Run(context.Background(), jar, out)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Empty(t, rt.seen)
	assert.Empty(t, jartest.Files(t, out))
}

func TestTrigger_UnreadableArchive(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.jar")
	require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0644))

	_, err := NewTrigger(PassthroughAgent{}).Run(context.Background(), bad, t.TempDir())
	assert.Error(t, err)
}

func TestTrigger_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	tf := TransformFunc(func(_ context.Context, _ Unit, data []byte) ([]byte, error) {
		calls++
		cancel()
		return data, nil
	})

	outcomes, err := NewTrigger(tf).Run(ctx, threeUnitJar(t), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, outcomes, 1)
	assert.Equal(t, 1, calls)
}

func TestTrigger_WriteFailureIsUnitFailure(t *testing.T) {
	out := t.TempDir()
	// A file where the unit's package directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(out, "p"), []byte("blocker"), 0644))

	outcomes, err := NewTrigger(PassthroughAgent{}).Run(context.Background(), threeUnitJar(t), out)
	require.NoError(t, err)
	assert.Equal(t, Counts{Failed: 3}, Summarize(outcomes))
}
