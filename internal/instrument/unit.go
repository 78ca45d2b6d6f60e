// Package instrument drives the transformation agent over the compiled units
// of an archive and reports a per-unit outcome for each.
package instrument

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// UnitSuffix marks compiled unit entries.
const UnitSuffix = ".class"

const classMagic = 0xCAFEBABE

// Unit is one compiled unit of an archive.
type Unit struct {
	// Name is the dotted unit name, e.g. "com.example.Foo$Bar".
	Name string `json:"name"`
	// EntryPath is the archive entry the unit was read from.
	EntryPath string `json:"entry"`
}

// IsUnitEntry reports whether an entry name denotes a compiled unit.
func IsUnitEntry(name string) bool {
	return strings.HasSuffix(name, UnitSuffix) && !strings.HasSuffix(name, "/")
}

// UnitFromEntry derives the unit for an entry name. ok is false for entries
// that are not compiled units.
func UnitFromEntry(name string) (u Unit, ok bool) {
	if !IsUnitEntry(name) {
		return Unit{}, false
	}
	dotted := strings.ReplaceAll(strings.TrimSuffix(name, UnitSuffix), "/", ".")
	return Unit{Name: dotted, EntryPath: name}, true
}

// EntryPathFor is the inverse of UnitFromEntry.
func EntryPathFor(unitName string) string {
	return strings.ReplaceAll(unitName, ".", "/") + UnitSuffix
}

// ClassVersion reads the major and minor version from a class file header.
func ClassVersion(data []byte) (major, minor uint16, err error) {
	if len(data) < 8 {
		return 0, 0, fmt.Errorf("%d byte header: %w", len(data), ErrNotClassFile)
	}
	if binary.BigEndian.Uint32(data[0:4]) != classMagic {
		return 0, 0, fmt.Errorf("magic %#x: %w", binary.BigEndian.Uint32(data[0:4]), ErrNotClassFile)
	}
	minor = binary.BigEndian.Uint16(data[4:6])
	major = binary.BigEndian.Uint16(data[6:8])
	return major, minor, nil
}
