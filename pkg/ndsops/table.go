package ndsops

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/ndstool/ndsrom/pkg/ndsrom"
)

func init() {
	Register("table", "print a compact table of files, overlays and sizes", 0, newTable)
}

// Table prints the rom's files and overlays as a compact, human-readable
// table. The format is for inspection only and may change.
type Table struct {
	W *tabwriter.Writer
}

func newTable([]string) (Operation, error) {
	return &Table{}, nil
}

// Run prints the table to Stdout.
func (t *Table) Run(r *ndsrom.Rom) error {
	w := tabwriter.NewWriter(Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME\tSIZE")
	fmt.Fprintf(w, "ARM9\t\t%s\n", humanize.Bytes(uint64(len(r.ARM9))))
	fmt.Fprintf(w, "ARM7\t\t%s\n", humanize.Bytes(uint64(len(r.ARM7))))
	for _, o := range r.ARM9Overlays {
		fmt.Fprintf(w, "OVERLAY9\t#%d\t%s\n", o.ID, humanize.Bytes(uint64(len(o.Data))))
	}
	for _, o := range r.ARM7Overlays {
		fmt.Fprintf(w, "OVERLAY7\t#%d\t%s\n", o.ID, humanize.Bytes(uint64(len(o.Data))))
	}

	paths := make([]string, 0, len(r.Files))
	for p := range r.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(w, "FILE\t%s\t%s\n", p, humanize.Bytes(uint64(len(r.Files[p]))))
	}
	return w.Flush()
}
