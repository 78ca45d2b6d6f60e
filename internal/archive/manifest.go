package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"offinstr/internal/logging"
)

// Manifest is an archive's META-INF/MANIFEST.MF. The raw bytes are kept and
// written back verbatim; the main section is parsed for diagnostics only.
type Manifest struct {
	raw   []byte
	names []string
	attrs map[string]string // keyed by lower-cased name
}

// ParseManifest parses the main section of a jar manifest.
func ParseManifest(raw []byte) (*Manifest, error) {
	m := &Manifest{
		raw:   append([]byte(nil), raw...),
		attrs: make(map[string]string),
	}

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	last := ""
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			// main section ends at the first blank line
			break
		}
		if strings.HasPrefix(line, " ") {
			if last == "" {
				return nil, fmt.Errorf("manifest line %d: continuation without header", lineNo)
			}
			m.attrs[last] += line[1:]
			continue
		}
		name, value, ok := strings.Cut(line, ": ")
		if !ok || name == "" {
			return nil, fmt.Errorf("manifest line %d: invalid header %q", lineNo, line)
		}
		key := strings.ToLower(name)
		if _, dup := m.attrs[key]; !dup {
			m.names = append(m.names, name)
		}
		m.attrs[key] = value
		last = key
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}
	return m, nil
}

// Bytes returns the manifest exactly as read.
func (m *Manifest) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.raw
}

// Get returns a main-section attribute; names are case-insensitive.
func (m *Manifest) Get(name string) string {
	if m == nil {
		return ""
	}
	return m.attrs[strings.ToLower(name)]
}

// Names returns main-section attribute names in file order.
func (m *Manifest) Names() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.names...)
}

// Version returns Manifest-Version.
func (m *Manifest) Version() string {
	return m.Get("Manifest-Version")
}

// ReadManifest returns the archive's manifest, or nil with no error when the
// archive has none.
func ReadManifest(archivePath string) (*Manifest, error) {
	r, err := Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	if !r.Has(ManifestName) {
		logging.Archive("could not find manifest in %s", archivePath)
		return nil, nil
	}
	raw, err := r.ReadEntry(ManifestName)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest of %s: %w", archivePath, err)
	}
	return m, nil
}
