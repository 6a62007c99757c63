package ndsops

import (
	"os"
	"path/filepath"

	"github.com/ndstool/ndsrom/pkg/ndsrom"
)

func init() {
	Register("extract", "extract file payloads to a directory", 1, newExtract)
}

// Extract writes every file in a Rom's Files mapping to DirPath, mirroring
// the path structure of the filename table.
type Extract struct {
	DirPath string
}

func newExtract(args []string) (Operation, error) {
	return &Extract{DirPath: args[0]}, nil
}

// Run writes each file under e.DirPath.
func (e *Extract) Run(r *ndsrom.Rom) error {
	for path, data := range r.Files {
		dest := filepath.Join(e.DirPath, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
