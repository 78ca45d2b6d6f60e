package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"offinstr/internal/archive"
	"offinstr/internal/instrument"
)

func newInspectCmd(a *app) *cobra.Command {
	var showEntries bool
	cmd := &cobra.Command{
		Use:   "inspect <archive>...",
		Short: "Summarize the entries of jar archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				if err := inspectArchive(cmd, p, showEntries); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showEntries, "entries", false, "List every entry")
	return cmd
}

func inspectArchive(cmd *cobra.Command, archivePath string, showEntries bool) error {
	r, err := archive.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	manifest, err := archive.ReadManifest(archivePath)
	if err != nil {
		return err
	}

	var units, excluded, dirs, newest int
	for _, e := range r.Entries() {
		switch {
		case e.Dir:
			dirs++
		case instrument.IsUnitEntry(e.Name):
			units++
			if data, err := r.ReadEntry(e.Name); err == nil {
				if major, _, err := instrument.ClassVersion(data); err == nil && int(major) > newest {
					newest = int(major)
				}
			}
		case archive.IsExcluded(e.Name):
			excluded++
		}
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "archive:\t%s\n", archivePath)
	if manifest != nil {
		fmt.Fprintf(w, "manifest:\tversion %s, %d attributes\n", manifest.Version(), len(manifest.Names()))
	} else {
		fmt.Fprintf(w, "manifest:\tnone\n")
	}
	fmt.Fprintf(w, "entries:\t%d (%d directories)\n", len(r.Entries()), dirs)
	fmt.Fprintf(w, "classes:\t%d (newest class file major %d)\n", units, newest)
	fmt.Fprintf(w, "native/nested:\t%d\n", excluded)
	if err := w.Flush(); err != nil {
		return err
	}

	if showEntries {
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
		for _, e := range r.Entries() {
			fmt.Fprintf(w, "%d\t%08x\t %s\n", e.Size, e.CRC32, e.Name)
		}
		return w.Flush()
	}
	return nil
}
