package ndsops

import (
	"fmt"
	"text/tabwriter"

	"github.com/ndstool/ndsrom/pkg/ndsrom"
)

func init() {
	Register("fields", "print the header field schema with offsets and lengths", 0, newFieldsDump)
}

// FieldsDump prints the header field enumeration (wire name, split display
// name, offset, length) for inspection. It does not depend on the loaded
// ROM's contents, only its header schema.
type FieldsDump struct{}

func newFieldsDump([]string) (Operation, error) {
	return &FieldsDump{}, nil
}

// Run prints the table to Stdout.
func (f *FieldsDump) Run(r *ndsrom.Rom) error {
	w := tabwriter.NewWriter(Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISPLAY NAME\tOFFSET\tLENGTH")
	for _, fi := range ndsrom.Fields() {
		fmt.Fprintf(w, "%s\t%s\t%#x\t%d\n", fi.Name, fi.DisplayName, fi.Offset, fi.Length)
	}
	return w.Flush()
}
