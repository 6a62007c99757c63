package ndsops

import (
	"os"

	"github.com/ndstool/ndsrom/pkg/ndsrom"
)

func init() {
	Register("save", "compose the rom and write the image to FILE", 1, newSave)
}

// ComposeOptions are the Compose parameters the CLI's global flags feed
// into every "save" operation (see cmd/ndstool's --storage, --fill-tail,
// --fill-with). Defaults match homebrew tooling's expectations for
// rebuilt images: PROM storage constants, tail-filled with 0xFF.
var ComposeOptions = ndsrom.ComposeOptions{
	StorageType: ndsrom.StoragePROM,
	FillTail:    true,
	FillWith:    0xFF,
}

// Save composes the current Rom and writes the resulting image to Path.
type Save struct {
	Path string
}

func newSave(args []string) (Operation, error) {
	return &Save{Path: args[0]}, nil
}

// Run composes r using the package's ComposeOptions and writes the
// resulting image to s.Path.
func (s *Save) Run(r *ndsrom.Rom) error {
	img, err := r.Compose(ComposeOptions)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, img, 0o644)
}
