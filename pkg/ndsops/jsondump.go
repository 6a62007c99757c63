package ndsops

import (
	"encoding/json"
	"fmt"

	"github.com/ndstool/ndsrom/pkg/ndsrom"
)

func init() {
	Register("json", "dump the decomposed rom as JSON to stdout", 0, newJSONDump)
}

// JSONDump reports a Rom's structure (excluding raw binary payload bytes,
// which are summarised by length) as indented JSON.
type JSONDump struct{}

func newJSONDump([]string) (Operation, error) {
	return JSONDump{}, nil
}

type jsonOverlay struct {
	ID         uint32 `json:"id"`
	RAMAddress uint32 `json:"ram_address"`
	RAMSize    uint32 `json:"ram_size"`
	FileID     uint32 `json:"file_id"`
	DataLen    int    `json:"data_len"`
}

type jsonRom struct {
	ARM9Len      int           `json:"arm9_len"`
	ARM7Len      int           `json:"arm7_len"`
	ARM9Overlays []jsonOverlay `json:"arm9_overlays"`
	ARM7Overlays []jsonOverlay `json:"arm7_overlays"`
	Files        map[string]int `json:"files"`
	FileOrder    []string      `json:"file_order"`
}

// Run writes the Rom summary as JSON to Stdout.
func (JSONDump) Run(r *ndsrom.Rom) error {
	out := jsonRom{
		ARM9Len:   len(r.ARM9),
		ARM7Len:   len(r.ARM7),
		Files:     map[string]int{},
		FileOrder: r.FileOrder,
	}
	for _, o := range r.ARM9Overlays {
		out.ARM9Overlays = append(out.ARM9Overlays, jsonOverlay{o.ID, o.RAMAddress, o.RAMSize, o.FileID, len(o.Data)})
	}
	for _, o := range r.ARM7Overlays {
		out.ARM7Overlays = append(out.ARM7Overlays, jsonOverlay{o.ID, o.RAMAddress, o.RAMSize, o.FileID, len(o.Data)})
	}
	for path, data := range r.Files {
		out.Files[path] = len(data)
	}

	enc := json.NewEncoder(Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("json dump: %w", err)
	}
	return nil
}
