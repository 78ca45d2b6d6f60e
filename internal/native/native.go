// Package native places the runtime's native libraries for one ABI into a
// staging directory.
package native

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"offinstr/internal/archive"
	"offinstr/internal/logging"
)

// ErrUnknownABI is returned for an ABI without a payload set.
var ErrUnknownABI = errors.New("unknown ABI")

// Component names a native runtime component.
type Component string

const (
	ComponentDriver             Component = "driver"
	ComponentPreload            Component = "preload"
	ComponentFuzzedDataProvider Component = "fuzzed_data_provider"
)

// Components lists every component in injection order.
var Components = []Component{ComponentDriver, ComponentPreload, ComponentFuzzedDataProvider}

// Payload maps one component to its source entry and destination file.
type Payload struct {
	Component Component `json:"component"`
	// Entry is the path inside the runtime archive.
	Entry string `json:"entry"`
	// File is the destination base name under lib/<abi>/.
	File string `json:"file"`
}

// PayloadSet is the fixed payload list for one ABI.
type PayloadSet struct {
	ABI      string    `json:"abi"`
	Payloads []Payload `json:"payloads"`
}

// abiArch maps Android ABI names to the architecture suffix of runtime
// archive entries.
var abiArch = map[string]string{
	"arm64-v8a": "aarch64",
	"x86_64":    "x86_64",
}

// SupportedABIs lists the ABIs PayloadSetFor accepts.
func SupportedABIs() []string {
	abis := make([]string, 0, len(abiArch))
	for abi := range abiArch {
		abis = append(abis, abi)
	}
	sort.Strings(abis)
	return abis
}

// PayloadSetFor returns the payload set for abi.
func PayloadSetFor(abi string) (PayloadSet, error) {
	arch, ok := abiArch[abi]
	if !ok {
		return PayloadSet{}, fmt.Errorf("%q (supported: %v): %w", abi, SupportedABIs(), ErrUnknownABI)
	}
	const base = "com/code_intelligence/jazzer/"
	return PayloadSet{
		ABI: abi,
		Payloads: []Payload{
			{
				Component: ComponentDriver,
				Entry:     base + "driver/jazzer_driver_android_" + arch + "/libjazzer_driver.so",
				File:      "libjazzer_driver.so",
			},
			{
				Component: ComponentPreload,
				Entry:     base + "jazzer_preload_android_" + arch + "/libjazzer_preload.so",
				File:      "libjazzer_preload.so",
			},
			{
				Component: ComponentFuzzedDataProvider,
				Entry:     base + "driver/jazzer_fuzzed_data_provider_android_" + arch + "/libjazzer_fuzzed_data_provider.so",
				File:      "libjazzer_fuzzed_data_provider.so",
			},
		},
	}, nil
}

// Inject extracts every payload for abi from runtimeArchive into
// stageRoot/lib/<abi>/ and returns the written paths. Destinations must not
// exist yet; an existing file or a missing entry is an error.
func Inject(runtimeArchive, stageRoot, abi string) ([]string, error) {
	set, err := PayloadSetFor(abi)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(stageRoot, "lib", abi)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	r, err := archive.Open(runtimeArchive)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	written := make([]string, 0, len(set.Payloads))
	for _, p := range set.Payloads {
		dest := filepath.Join(dir, p.File)
		if err := extractNew(r, p.Entry, dest); err != nil {
			return written, fmt.Errorf("inject %s: %w", p.Component, err)
		}
		logging.NativeDebug("placed %s at %s", p.Entry, dest)
		written = append(written, dest)
	}
	logging.Native("injected %d native libraries for %s", len(written), abi)
	return written, nil
}

func extractNew(r *archive.Reader, entry, dest string) error {
	if !r.Has(entry) {
		return fmt.Errorf("%s in %s: %w", entry, r.Path(), archive.ErrEntryNotFound)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := r.CopyEntry(entry, out); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	return out.Close()
}
