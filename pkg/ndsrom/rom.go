package ndsrom

import (
	"encoding/binary"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/ndstool/ndsrom/pkg/bytesutil"
	"github.com/ndstool/ndsrom/pkg/ndslog"
)

// StorageType selects the cartridge backing store, which determines the
// ROMCTRL constants and secure transfer delay written at compose time.
// Chip capacity and tail fill do not depend on it: both follow from the
// composed image size alone.
type StorageType int

const (
	// StorageMROM is a mask ROM cartridge (commercial retail media).
	StorageMROM StorageType = iota
	// StoragePROM is a programmable/flash cartridge (homebrew, flashcarts).
	StoragePROM
)

// romControlWords holds the documented ROMCTRL constants per storage type.
// The source interface leaves their exact derivation unspecified beyond
// "computed automatically from storage_type"; these are the standard
// values adopted for each class (see design notes).
var romControlWords = map[StorageType]struct {
	Normal uint32
	Secure uint32
	Delay  uint32
}{
	StorageMROM: {Normal: 0x00586000, Secure: 0x001808F8, Delay: 0x081A},
	StoragePROM: {Normal: 0x00416657, Secure: 0x081808F8, Delay: 0x0D7E},
}

// capacityUnit is the byte size backing chip-capacity code 0 (128 KiB);
// code n covers capacityUnit << n bytes.
const capacityUnit = 0x20000

// maxCapacityCode bounds the cartridge sizes the composer will produce;
// code 14 covers 2 GiB, comfortably above the 512 MiB floor required of
// external interfaces.
const maxCapacityCode = 14

// nitrocodeSize is the length of the optional homebrew-loader footer a
// user header may ask to keep directly after the ARM9 binary.
const nitrocodeSize = 12

// nitrocodeMagic is the little-endian marker identifying a nitrocode
// footer; its value is not covered by ARM9_SIZE, so the composer must
// carry it separately from the ARM9 binary payload.
const nitrocodeMagic = 0xDEC00621

// Rom is the fully decomposed representation of a ROM image.
type Rom struct {
	Header *Header

	ARM9 []byte
	ARM7 []byte

	// ARM9Nitrocode is the optional 12-byte homebrew-loader footer that
	// sits directly after the ARM9 binary, outside of ARM9_SIZE. Nil when
	// absent.
	ARM9Nitrocode []byte

	ARM9Overlays []Overlay
	ARM7Overlays []Overlay

	Files     map[string][]byte
	FileOrder []string

	Banner []byte
}

// ComposeOptions parameterises Rom.Compose.
type ComposeOptions struct {
	StorageType StorageType
	FillTail    bool
	FillWith    byte
}

// Decompose parses a raw ROM image into its structured representation.
func Decompose(image []byte) (*Rom, error) {
	if len(image) < HeaderSize {
		return nil, newErr(TruncatedImage, "image of length %#x is smaller than the header", len(image))
	}
	headerBuf := make([]byte, HeaderSize)
	copy(headerBuf, image[:HeaderSize])
	h, err := NewHeader(headerBuf)
	if err != nil {
		return nil, err
	}

	arm9, err := regionOrTruncated(h, image, FieldARM9RomOffset, FieldARM9Size, "ARM9 binary")
	if err != nil {
		return nil, err
	}
	arm9Nitrocode := readNitrocode(h, image)
	arm7, err := regionOrTruncated(h, image, FieldARM7RomOffset, FieldARM7Size, "ARM7 binary")
	if err != nil {
		return nil, err
	}

	bannerOff := h.GetLE(FieldIconBannerOffset)
	if bannerOff+uint64(BannerSize) > uint64(len(image)) {
		return nil, newErr(TruncatedImage, "banner region exceeds image bounds")
	}
	banner := make([]byte, BannerSize)
	copy(banner, image[bannerOff:bannerOff+uint64(BannerSize)])

	fatBytes, err := regionOrTruncated(h, image, FieldFATOffset, FieldFATSize, "FAT")
	if err != nil {
		return nil, err
	}
	fntBytes, err := regionOrTruncated(h, image, FieldFNTOffset, FieldFNTSize, "FNT")
	if err != nil {
		return nil, err
	}

	payloads, fatOrder, err := DecodeFAT(fatBytes, image)
	if err != nil {
		return nil, err
	}

	pathToID, err := GetFilenameIDMap(fntBytes, len(payloads))
	if err != nil {
		return nil, err
	}
	idToPath := make(map[uint32]string, len(pathToID))
	for path, id := range pathToID {
		idToPath[id] = path
	}

	ovt9Bytes, err := regionOrTruncated(h, image, FieldARM9OverlayOffset, FieldARM9OverlaySize, "ARM9 overlay table")
	if err != nil {
		return nil, err
	}
	arm9Overlays, err := DecodeOverlays(ovt9Bytes, payloads)
	if err != nil {
		return nil, err
	}
	ovt7Bytes, err := regionOrTruncated(h, image, FieldARM7OverlayOffset, FieldARM7OverlaySize, "ARM7 overlay table")
	if err != nil {
		return nil, err
	}
	arm7Overlays, err := DecodeOverlays(ovt7Bytes, payloads)
	if err != nil {
		return nil, err
	}

	overlayFileIDs := make(map[uint32]bool)
	for _, o := range arm9Overlays {
		overlayFileIDs[o.FileID] = true
	}
	for _, o := range arm7Overlays {
		overlayFileIDs[o.FileID] = true
	}

	files := make(map[string][]byte)
	for id, path := range idToPath {
		if overlayFileIDs[id] {
			continue
		}
		files[path] = payloads[id]
	}

	fileOrder := make([]string, 0, len(fatOrder))
	for _, id := range fatOrder {
		if overlayFileIDs[uint32(id)] {
			continue
		}
		if path, ok := idToPath[uint32(id)]; ok {
			fileOrder = append(fileOrder, path)
		}
	}

	return &Rom{
		Header:        h,
		ARM9:          arm9,
		ARM9Nitrocode: arm9Nitrocode,
		ARM7:          arm7,
		ARM9Overlays:  arm9Overlays,
		ARM7Overlays:  arm7Overlays,
		Files:         files,
		FileOrder:     fileOrder,
		Banner:        banner,
	}, nil
}

func regionOrTruncated(h *Header, image []byte, offsetField, sizeField Field, what string) ([]byte, error) {
	region, err := h.GetRomRegion(image, offsetField, sizeField)
	if err != nil {
		return nil, newErr(TruncatedImage, "%s: %v", what, err)
	}
	out := make([]byte, len(region))
	copy(out, region)
	return out, nil
}

// readNitrocode returns a copy of the 12-byte nitrocode footer immediately
// following the ARM9 region, or nil if the bytes there don't carry its
// magic (or don't fit in the image). ARM9_SIZE never covers the footer, so
// it has to be detected positionally rather than read as part of ARM9.
func readNitrocode(h *Header, image []byte) []byte {
	end := h.GetLE(FieldARM9RomOffset) + h.GetLE(FieldARM9Size)
	if end+nitrocodeSize > uint64(len(image)) {
		return nil
	}
	footer := image[end : end+nitrocodeSize]
	if binary.LittleEndian.Uint32(footer[0:4]) != nitrocodeMagic {
		return nil
	}
	out := make([]byte, nitrocodeSize)
	copy(out, footer)
	return out
}

// Compose lays out the Rom's regions in the fixed composer order and
// returns a freshly owned byte image with every derived header field and
// the header CRC filled in.
func (r *Rom) Compose(opts ComposeOptions) ([]byte, error) {
	if err := validateRom(r); err != nil {
		return nil, err
	}

	fillWith := opts.FillWith

	paths := make([]string, 0, len(r.Files))
	for p := range r.Files {
		paths = append(paths, p)
	}

	effectiveOrder := effectiveFileOrder(r.FileOrder, r.Files)

	numARM9 := uint32(len(r.ARM9Overlays))
	numARM7 := uint32(len(r.ARM7Overlays))
	fileIDOffset := numARM9 + numARM7

	fntBytes, pathToID, err := ConstructFNTB(paths, fileIDOffset)
	if err != nil {
		return nil, err
	}

	ovt9Bytes, assignments9 := EncodeOverlays(r.ARM9Overlays, 0)
	ovt7Bytes, assignments7 := EncodeOverlays(r.ARM7Overlays, numARM9)

	regularAssignments := make([]FileAssignment, 0, len(effectiveOrder))
	for _, path := range effectiveOrder {
		regularAssignments = append(regularAssignments, FileAssignment{
			FileID:  pathToID[path],
			Payload: r.Files[path],
		})
	}

	img := make([]byte, HeaderSize)
	entries := make(map[uint32]FATEntry)

	appendRegion := func(data []byte) uint64 {
		cur := uint64(len(img))
		aligned := bytesutil.Align512(cur)
		for pad := aligned - cur; pad > 0; pad-- {
			img = append(img, fillWith)
		}
		img = append(img, data...)
		return aligned
	}
	appendPayload := func(fileID uint32, data []byte) {
		start := appendRegion(data)
		entries[fileID] = FATEntry{Start: uint32(start), End: uint32(start + uint64(len(data)))}
	}

	arm9Start := appendRegion(r.ARM9)
	if len(r.ARM9Nitrocode) == nitrocodeSize {
		// The footer sits directly after the ARM9 binary, before any
		// alignment padding for what follows (it is not itself aligned).
		img = append(img, r.ARM9Nitrocode...)
	}
	var ovt9Start uint64
	if len(ovt9Bytes) > 0 {
		ovt9Start = appendRegion(ovt9Bytes)
	}
	for _, a := range assignments9 {
		appendPayload(a.FileID, a.Payload)
	}

	arm7Start := appendRegion(r.ARM7)
	var ovt7Start uint64
	if len(ovt7Bytes) > 0 {
		ovt7Start = appendRegion(ovt7Bytes)
	}
	for _, a := range assignments7 {
		appendPayload(a.FileID, a.Payload)
	}

	fntStart := appendRegion(fntBytes)

	totalFiles := int(fileIDOffset) + len(regularAssignments)
	fatSize := totalFiles * FATEntryLength
	fatStart := appendRegion(make([]byte, fatSize))

	bannerStart := appendRegion(r.Banner)

	for _, a := range regularAssignments {
		appendPayload(a.FileID, a.Payload)
	}

	fatBytes := EncodeFATTable(entries, totalFiles)
	copy(img[fatStart:fatStart+uint64(fatSize)], fatBytes)

	totalRomSize := uint64(len(img))

	capacityCode, capacityBytes, err := deviceCapacityForSize(totalRomSize)
	if err != nil {
		return nil, err
	}

	hdrBuf := make([]byte, HeaderSize)
	copy(hdrBuf, r.Header.Buf())
	h, err := NewHeader(hdrBuf)
	if err != nil {
		return nil, err
	}

	ctrl := romControlWords[opts.StorageType]

	fields := []struct {
		field Field
		value uint64
	}{
		{FieldARM9RomOffset, arm9Start},
		{FieldARM9Size, uint64(len(r.ARM9))},
		{FieldARM7RomOffset, arm7Start},
		{FieldARM7Size, uint64(len(r.ARM7))},
		{FieldFNTOffset, fntStart},
		{FieldFNTSize, uint64(len(fntBytes))},
		{FieldFATOffset, fatStart},
		{FieldFATSize, uint64(fatSize)},
		{FieldARM9OverlayOffset, ovt9Start},
		{FieldARM9OverlaySize, uint64(len(ovt9Bytes))},
		{FieldARM7OverlayOffset, ovt7Start},
		{FieldARM7OverlaySize, uint64(len(ovt7Bytes))},
		{FieldIconBannerOffset, bannerStart},
		{FieldTotalRomSize, totalRomSize},
		{FieldHeaderSize, uint64(HeaderSize)},
		{FieldDeviceCapacity, uint64(capacityCode)},
		{FieldNormalCardControl, uint64(ctrl.Normal)},
		{FieldSecureCardControl, uint64(ctrl.Secure)},
		{FieldSecureTransferDelay, uint64(ctrl.Delay)},
	}
	for _, f := range fields {
		if err := h.SetLE(f.field, f.value); err != nil {
			return nil, err
		}
	}

	crcSpan := fieldOffset[FieldHeaderCRC]
	crc := CRC16(hdrBuf[:crcSpan], 0xFFFF)
	if err := h.SetLE(FieldHeaderCRC, uint64(crc)); err != nil {
		return nil, err
	}

	copy(img[0:HeaderSize], hdrBuf)

	if opts.FillTail {
		for uint64(len(img)) < capacityBytes {
			img = append(img, fillWith)
		}
	}

	return img, nil
}

// effectiveFileOrder returns fileOrder filtered to paths still present in
// files, followed by any files keys missing from fileOrder, appended in
// lexicographic order for determinism (Go map iteration order is
// unspecified, so the missing paths are sorted rather than taken as found).
func effectiveFileOrder(fileOrder []string, files map[string][]byte) []string {
	out := make([]string, 0, len(files))
	present := make(map[string]bool, len(fileOrder))
	for _, p := range fileOrder {
		if _, ok := files[p]; ok && !present[p] {
			out = append(out, p)
			present[p] = true
		}
	}
	var missing []string
	for p := range files {
		if !present[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		ndslog.Warnf("%d file(s) missing from file_order, appending at tail: %v", len(missing), missing)
	}
	return append(out, missing...)
}

func deviceCapacityForSize(size uint64) (uint8, uint64, error) {
	for code := 0; code <= maxCapacityCode; code++ {
		capacity := uint64(capacityUnit) << uint(code)
		if capacity >= size {
			return uint8(code), capacity, nil
		}
	}
	return 0, 0, newErr(CapacityExceeded, "rom size %#x exceeds the largest supported cartridge capacity", size)
}

func validateRom(r *Rom) error {
	var merr *multierror.Error
	if r.Header == nil {
		merr = multierror.Append(merr, newErr(SizeMismatch, "rom has no header"))
	}
	if len(r.Banner) != BannerSize {
		merr = multierror.Append(merr, newErr(BadBanner, "banner is %d bytes, want %d", len(r.Banner), BannerSize))
	}

	paths := make([]string, 0, len(r.Files))
	for path := range r.Files {
		paths = append(paths, path)
	}
	if _, err := buildDirTree(paths); err != nil {
		if me, ok := err.(*multierror.Error); ok {
			merr = multierror.Append(merr, me.Errors...)
		} else {
			merr = multierror.Append(merr, err)
		}
	}

	return foldMultierror(merr)
}
