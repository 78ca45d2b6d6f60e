package instrument

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offinstr/internal/testutil/jartest"
)

func TestUnitFromEntry(t *testing.T) {
	tests := []struct {
		entry  string
		want   string
		wantOK bool
	}{
		{"com/example/Foo.class", "com.example.Foo", true},
		{"com/example/Foo$Bar.class", "com.example.Foo$Bar", true},
		{"Top.class", "Top", true},
		{"com/example/", "", false},
		{"com/example/foo.properties", "", false},
		{"META-INF/MANIFEST.MF", "", false},
	}
	for _, tt := range tests {
		u, ok := UnitFromEntry(tt.entry)
		assert.Equal(t, tt.wantOK, ok, tt.entry)
		if !ok {
			continue
		}
		assert.Equal(t, tt.want, u.Name)
		assert.Equal(t, tt.entry, u.EntryPath)
		assert.Equal(t, tt.entry, EntryPathFor(u.Name), "name maps back to entry")
	}
}

func TestClassVersion(t *testing.T) {
	major, minor, err := ClassVersion([]byte(jartest.Class(61, "body")))
	require.NoError(t, err)
	assert.Equal(t, uint16(61), major)
	assert.Equal(t, uint16(0), minor)

	_, _, err = ClassVersion([]byte("short"))
	assert.True(t, errors.Is(err, ErrNotClassFile))

	_, _, err = ClassVersion([]byte("PK\x03\x04\x00\x00\x00\x34"))
	assert.ErrorIs(t, err, ErrNotClassFile)
}
