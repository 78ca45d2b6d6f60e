package packager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInputArchives(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"none", []string{"--release", "-outjars", "out.jar"}, nil},
		{"single run", []string{"-injars", "a.jar", "b.jar", "-outjars", "out.jar"}, []string{"a.jar", "b.jar"}},
		{"run at end", []string{"--release", "-injars", "a.jar"}, []string{"a.jar"}},
		{"repeated flag restarts", []string{"-injars", "a.jar", "-injars", "b.jar", "-libraryjars", "android.jar"}, []string{"a.jar", "b.jar"}},
		{"empty run", []string{"-injars", "-outjars", "out.jar"}, nil},
		{"stray paths ignored", []string{"x.jar", "-injars", "a.jar"}, []string{"a.jar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInputArchives(tt.args, DefaultInputFlag))
		})
	}
}
