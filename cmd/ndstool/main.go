// The ndstool command performs operations on a Nintendo DS cartridge ROM
// image.
//
// Synopsis:
//
//	ndstool ROM OPERATIONS...
//
// Examples:
//
//	# Dump everything to JSON:
//	ndstool game.nds json
//
//	# Dump a compact table of files and overlays:
//	ndstool game.nds table
//
//	# Extract every file into a directory:
//	ndstool game.nds extract game/
//
//	# Extract then recompose to a new image:
//	ndstool game.nds extract game/ save game2.nds
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	flags "github.com/jessevdk/go-flags"

	"github.com/ndstool/ndsrom/pkg/ndslog"
	"github.com/ndstool/ndsrom/pkg/ndsops"
	"github.com/ndstool/ndsrom/pkg/ndsrom"
)

// options holds the global flags that parameterise the "save" operation's
// Compose call, following the teacher's convention of a narrowly-scoped
// options struct per binary (cmds/fittool/main.go's flags.Options).
type options struct {
	Storage  string `short:"s" long:"storage" choice:"mrom" choice:"prom" default:"prom" description:"cartridge storage type used when composing"`
	FillTail bool   `long:"fill-tail" description:"pad the composed image to the cartridge's full capacity"`
	FillWith string `long:"fill-with" default:"0xFF" description:"byte value (hex) used for alignment and tail padding"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] ROM [OPERATIONS...]"

	args, err := parser.Parse()
	if err != nil {
		os.Exit(1)
	}

	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: ndstool %s\nOperations:\n%s", parser.Usage, ndsops.List())
		os.Exit(1)
	}

	fillWith, err := strconv.ParseUint(strings.TrimPrefix(opts.FillWith, "0x"), 16, 8)
	if err != nil {
		ndslog.Errorf("invalid --fill-with value %q: %v", opts.FillWith, err)
		os.Exit(1)
	}
	ndsops.ComposeOptions = ndsrom.ComposeOptions{
		StorageType: storageTypeFor(opts.Storage),
		FillTail:    opts.FillTail,
		FillWith:    byte(fillWith),
	}

	if err := ndsops.Run(args...); err != nil {
		ndslog.Errorf("%v", err)
		os.Exit(1)
	}
}

func storageTypeFor(name string) ndsrom.StorageType {
	if name == "mrom" {
		return ndsrom.StorageMROM
	}
	return ndsrom.StoragePROM
}
