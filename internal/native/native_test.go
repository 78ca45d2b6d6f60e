package native

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offinstr/internal/archive"
	"offinstr/internal/testutil/jartest"
)

func runtimeJar(t *testing.T, abis ...string) string {
	t.Helper()
	var entries []jartest.Entry
	for _, abi := range abis {
		set, err := PayloadSetFor(abi)
		require.NoError(t, err)
		for _, p := range set.Payloads {
			entries = append(entries, jartest.Entry{Name: p.Entry, Data: "ELF:" + abi + ":" + string(p.Component)})
		}
	}
	entries = append(entries, jartest.Entry{Name: "com/code_intelligence/jazzer/Jazzer.class", Data: "class"})
	return jartest.Write(t, filepath.Join(t.TempDir(), "jazzer.jar"), entries...)
}

func TestPayloadSetFor(t *testing.T) {
	set, err := PayloadSetFor("arm64-v8a")
	require.NoError(t, err)
	require.Len(t, set.Payloads, len(Components))
	for i, p := range set.Payloads {
		assert.Equal(t, Components[i], p.Component)
		assert.Contains(t, p.Entry, "_android_aarch64/")
		assert.Equal(t, p.File, filepath.Base(p.Entry))
	}

	_, err = PayloadSetFor("mips")
	assert.ErrorIs(t, err, ErrUnknownABI)
	assert.Equal(t, []string{"arm64-v8a", "x86_64"}, SupportedABIs())
}

func TestInject_PlacesByteIdenticalPayloads(t *testing.T) {
	for _, abi := range SupportedABIs() {
		t.Run(abi, func(t *testing.T) {
			jar := runtimeJar(t, abi)
			root := t.TempDir()

			written, err := Inject(jar, root, abi)
			require.NoError(t, err)
			require.Len(t, written, 3)

			entries, err := os.ReadDir(filepath.Join(root, "lib", abi))
			require.NoError(t, err)
			assert.Len(t, entries, 3)

			r, err := archive.Open(jar)
			require.NoError(t, err)
			defer r.Close()

			set, _ := PayloadSetFor(abi)
			for _, p := range set.Payloads {
				want, err := r.ReadEntry(p.Entry)
				require.NoError(t, err)
				got, err := os.ReadFile(filepath.Join(root, "lib", abi, p.File))
				require.NoError(t, err)
				assert.Equal(t, want, got, p.File)
			}
		})
	}
}

func TestInject_ExistingDestinationFails(t *testing.T) {
	jar := runtimeJar(t, "arm64-v8a")
	root := t.TempDir()

	_, err := Inject(jar, root, "arm64-v8a")
	require.NoError(t, err)

	_, err = Inject(jar, root, "arm64-v8a")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestInject_MissingEntry(t *testing.T) {
	jar := runtimeJar(t, "arm64-v8a")

	_, err := Inject(jar, t.TempDir(), "x86_64")
	assert.ErrorIs(t, err, archive.ErrEntryNotFound)
}

func TestInject_UnknownABI(t *testing.T) {
	_, err := Inject(runtimeJar(t, "arm64-v8a"), t.TempDir(), "armeabi-v7a")
	assert.ErrorIs(t, err, ErrUnknownABI)
}
