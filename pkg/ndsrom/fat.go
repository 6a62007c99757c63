package ndsrom

import (
	"encoding/binary"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/ndstool/ndsrom/pkg/bytesutil"
	"github.com/xaionaro-go/bytesextra"
)

// FATEntryLength is the size in bytes of one File Allocation Table record.
const FATEntryLength = 8

// FATAlignment is the byte boundary every FAT-described payload region
// must start on within the ROM image.
const FATAlignment = 512

// FATEntry is one (start, end) byte range into the ROM image. The FAT
// index of an entry is its file ID.
type FATEntry struct {
	Start uint32
	End   uint32
}

// wireFATEntry is the binary.Read/Write shape of a FAT record.
type wireFATEntry struct {
	Start uint32
	End   uint32
}

// DecodeFAT parses the FAT region of an image into the ordered set of
// file payloads (indexed by file ID) plus the physical placement order
// (file IDs sorted by ascending start offset, per section 4.2).
func DecodeFAT(fatBytes []byte, image []byte) (payloads [][]byte, order []int, err error) {
	if len(fatBytes)%FATEntryLength != 0 {
		return nil, nil, newErr(TruncatedImage, "FAT region length %d is not a multiple of %d", len(fatBytes), FATEntryLength)
	}
	count := len(fatBytes) / FATEntryLength
	entries := make([]FATEntry, count)

	r := bytesextra.NewReadWriteSeeker(fatBytes)
	for i := 0; i < count; i++ {
		var w wireFATEntry
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			return nil, nil, newErr(TruncatedImage, "failed to read FAT entry %d: %v", i, err)
		}
		entries[i] = FATEntry{Start: w.Start, End: w.End}
	}

	payloads = make([][]byte, count)
	for i, e := range entries {
		if e.End < e.Start || uint64(e.End) > uint64(len(image)) {
			return nil, nil, newErr(TruncatedImage, "FAT entry %d range [%#x, %#x) exceeds image of length %#x",
				i, e.Start, e.End, len(image))
		}
		payloads[i] = image[e.Start:e.End]
	}

	var merr *multierror.Error
	for i := 0; i < count; i++ {
		for j := i + 1; j < count; j++ {
			if entries[i].Start < entries[j].End && entries[j].Start < entries[i].End {
				merr = multierror.Append(merr, newErr(OutOfBounds,
					"FAT entries %d [%#x, %#x) and %d [%#x, %#x) overlap",
					i, entries[i].Start, entries[i].End, j, entries[j].Start, entries[j].End))
			}
		}
	}
	if err := foldMultierror(merr); err != nil {
		return nil, nil, err
	}

	order = make([]int, count)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return entries[order[i]].Start < entries[order[j]].Start
	})

	return payloads, order, nil
}

// FileAssignment binds a file ID to its payload bytes for FAT encoding.
type FileAssignment struct {
	FileID  uint32
	Payload []byte
}

// LayoutPayloads lays out assignments end-to-end starting at baseOffset,
// rounding each payload's start up to FATAlignment, and returns the
// concatenated region bytes (with fillWith padding between payloads), a
// FAT-index-keyed entry map, and the end offset of the region.
func LayoutPayloads(assignments []FileAssignment, baseOffset uint64, fillWith byte) (data []byte, entries map[uint32]FATEntry, end uint64) {
	entries = make(map[uint32]FATEntry, len(assignments))
	cur := baseOffset
	for _, a := range assignments {
		aligned := bytesutil.Align512(cur)
		for pad := aligned - cur; pad > 0; pad-- {
			data = append(data, fillWith)
		}
		start := aligned
		data = append(data, a.Payload...)
		stop := start + uint64(len(a.Payload))
		entries[a.FileID] = FATEntry{Start: uint32(start), End: uint32(stop)}
		cur = stop
	}
	return data, entries, cur
}

// EncodeFATTable serialises entries (indexed by file ID 0..numFiles-1) into
// the wire format of the FAT region.
func EncodeFATTable(entries map[uint32]FATEntry, numFiles int) []byte {
	out := make([]byte, numFiles*FATEntryLength)
	for id := 0; id < numFiles; id++ {
		e := entries[uint32(id)]
		off := id * FATEntryLength
		binary.LittleEndian.PutUint32(out[off:], e.Start)
		binary.LittleEndian.PutUint32(out[off+4:], e.End)
	}
	return out
}
