package ndsrom

import (
	"encoding/binary"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/bytesextra"
)

// OverlayEntryLength is the size in bytes of one Overlay Table record.
const OverlayEntryLength = 32

// Overlay describes one entry of an Overlay Table (ARM9 or ARM7) plus
// the payload bytes it names via its file ID.
type Overlay struct {
	ID              uint32
	RAMAddress      uint32
	RAMSize         uint32
	BSSSize         uint32
	StaticInitStart uint32
	StaticInitEnd   uint32
	FileID          uint32
	Reserved        uint32
	Data            []byte
}

type wireOverlayEntry struct {
	ID              uint32
	RAMAddress      uint32
	RAMSize         uint32
	BSSSize         uint32
	StaticInitStart uint32
	StaticInitEnd   uint32
	FileID          uint32
	Reserved        uint32
}

// DecodeOverlays parses an Overlay Table region into Overlay records,
// resolving each entry's payload via the already-decoded FAT payload
// slice (indexed by file ID).
func DecodeOverlays(ovt []byte, fatPayloads [][]byte) ([]Overlay, error) {
	if len(ovt)%OverlayEntryLength != 0 {
		return nil, newErr(MalformedOVT, "overlay table length %d is not a multiple of %d", len(ovt), OverlayEntryLength)
	}
	count := len(ovt) / OverlayEntryLength
	wireEntries := make([]wireOverlayEntry, count)

	r := bytesextra.NewReadWriteSeeker(ovt)
	for i := 0; i < count; i++ {
		if err := binary.Read(r, binary.LittleEndian, &wireEntries[i]); err != nil {
			return nil, newErr(MalformedOVT, "failed to read overlay entry %d: %v", i, err)
		}
	}

	// Duplicate and missing file ID references are independent per-entry
	// problems, so a single pass collects every one of them instead of
	// failing on the first.
	var merr *multierror.Error
	seen := make(map[uint32]bool, count)
	overlays := make([]Overlay, count)
	for i, w := range wireEntries {
		if seen[w.FileID] {
			merr = multierror.Append(merr, newErr(MalformedOVT, "duplicate overlay file id %d", w.FileID))
		}
		seen[w.FileID] = true
		var data []byte
		if int(w.FileID) >= len(fatPayloads) {
			merr = multierror.Append(merr, newErr(MalformedOVT, "overlay %d references missing file id %d", i, w.FileID))
		} else {
			data = fatPayloads[w.FileID]
		}
		overlays[i] = Overlay{
			ID:              w.ID,
			RAMAddress:      w.RAMAddress,
			RAMSize:         w.RAMSize,
			BSSSize:         w.BSSSize,
			StaticInitStart: w.StaticInitStart,
			StaticInitEnd:   w.StaticInitEnd,
			FileID:          w.FileID,
			Reserved:        w.Reserved,
			Data:            data,
		}
	}
	if err := foldMultierror(merr); err != nil {
		return nil, err
	}
	return overlays, nil
}

// EncodeOverlays serialises overlays into their Overlay Table wire form.
// fileIDOffset is added to each overlay's position to compute the file ID
// it is assigned in the FAT; overlay file IDs are always reassigned fresh
// rather than trusting Overlay.FileID.
func EncodeOverlays(overlays []Overlay, fileIDOffset uint32) (table []byte, assignments []FileAssignment) {
	table = make([]byte, len(overlays)*OverlayEntryLength)
	assignments = make([]FileAssignment, len(overlays))
	for i, o := range overlays {
		fileID := fileIDOffset + uint32(i)
		w := wireOverlayEntry{
			ID:              o.ID,
			RAMAddress:      o.RAMAddress,
			RAMSize:         o.RAMSize,
			BSSSize:         o.BSSSize,
			StaticInitStart: o.StaticInitStart,
			StaticInitEnd:   o.StaticInitEnd,
			FileID:          fileID,
			Reserved:        o.Reserved,
		}
		off := i * OverlayEntryLength
		rec := table[off : off+OverlayEntryLength]
		binary.LittleEndian.PutUint32(rec[0:4], w.ID)
		binary.LittleEndian.PutUint32(rec[4:8], w.RAMAddress)
		binary.LittleEndian.PutUint32(rec[8:12], w.RAMSize)
		binary.LittleEndian.PutUint32(rec[12:16], w.BSSSize)
		binary.LittleEndian.PutUint32(rec[16:20], w.StaticInitStart)
		binary.LittleEndian.PutUint32(rec[20:24], w.StaticInitEnd)
		binary.LittleEndian.PutUint32(rec[24:28], w.FileID)
		binary.LittleEndian.PutUint32(rec[28:32], w.Reserved)
		assignments[i] = FileAssignment{FileID: fileID, Payload: o.Data}
	}
	return table, assignments
}
