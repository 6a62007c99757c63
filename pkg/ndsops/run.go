package ndsops

import (
	"errors"
	"os"

	"github.com/ndstool/ndsrom/pkg/ndsrom"
)

// Run loads the ROM image named by args[0], applies the operations named
// by the remaining arguments in sequence, and returns any error from
// loading, parsing or running an operation.
func Run(args ...string) error {
	if len(args) == 0 {
		return errors.New("at least one argument is required")
	}

	ops, err := Parse(args[1:])
	if err != nil {
		return err
	}

	image, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	rom, err := ndsrom.Decompose(image)
	if err != nil {
		return err
	}

	return Execute(rom, ops)
}
