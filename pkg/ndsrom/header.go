// Package ndsrom implements a bidirectional codec for the Nintendo DS
// cartridge ROM container: decomposing a flat image into its header, the
// two processor binaries and their overlays, the filename tree, the file
// allocation table, the banner and the file payloads, and recomposing a
// valid image from those components.
package ndsrom

import (
	"encoding/binary"
	"strings"

	"github.com/fatih/camelcase"
)

// HeaderSize is the fixed size of the header block.
const HeaderSize = 0x4000

// BannerSize is the fixed size of the icon/banner block.
const BannerSize = 0xA00

// Field identifies one member of the DS header schema. Field order here is
// declaration order: a field's implicit length is the distance to the
// offset of its successor (see succ below), so the schema only needs to
// record offsets, not lengths.
type Field int

// Header fields, in declaration order. Comments mark which are
// user-authored (read verbatim on decompose, left to the caller to set)
// versus derived (recomputed unconditionally by Compose; their value on
// decompose is purely informational).
const (
	FieldGameTitle           Field = iota // user-authored
	FieldGameCode                         // user-authored
	FieldMakerCode                        // user-authored
	FieldUnitCode                         // user-authored
	FieldEncryptionSeedSelect             // user-authored
	FieldDeviceCapacity                   // derived: chip capacity
	FieldReserved1                        // user-authored
	FieldGameRevision                     // user-authored
	FieldRomVersion                       // user-authored
	FieldInternalFlags                    // user-authored
	FieldARM9RomOffset                    // derived
	FieldARM9EntryAddress                 // user-authored
	FieldARM9RamAddress                   // user-authored
	FieldARM9Size                         // derived: ARM9 load size
	FieldARM7RomOffset                    // derived
	FieldARM7EntryAddress                 // user-authored
	FieldARM7RamAddress                   // user-authored
	FieldARM7Size                         // derived: ARM7 load size
	FieldFNTOffset                        // derived
	FieldFNTSize                          // derived
	FieldFATOffset                        // derived
	FieldFATSize                          // derived
	FieldARM9OverlayOffset                // derived
	FieldARM9OverlaySize                  // derived
	FieldARM7OverlayOffset                // derived
	FieldARM7OverlaySize                  // derived
	FieldNormalCardControl                // derived: ROMCTRL, decrypted form
	FieldSecureCardControl                // derived: ROMCTRL, encrypted form
	FieldIconBannerOffset                 // derived
	FieldSecureAreaCRC                    // user-authored
	FieldSecureTransferDelay              // derived: secure delay
	FieldARM9Autoload                     // user-authored
	FieldARM7Autoload                     // user-authored
	FieldSecureDisable                    // user-authored
	FieldTotalRomSize                     // derived
	FieldHeaderSize                       // derived
	FieldReserved2                        // user-authored (logo + padding)
	FieldNintendoLogoCRC                  // user-authored
	FieldHeaderCRC                        // derived: header CRC
	FieldHeaderCRCEnd                     // sentinel, see spec section 3
	FieldStaticFooter                     // user-authored: static footer / debugger reserved
	FieldEntireHeader                     // sentinel, fixed point: succ(FieldEntireHeader) == FieldEntireHeader
)

type fieldSpec struct {
	field  Field
	name   string
	symbol string // Go-style identifier for name, used to derive DisplayName
	offset uint32
}

// headerSchema lists every field in declaration order with its fixed
// offset. A field's length is computed as the distance to the next
// field's offset (see Header.fieldLen), never stored directly.
var headerSchema = []fieldSpec{
	{FieldGameTitle, "GAME_TITLE", "GameTitle", 0x000},
	{FieldGameCode, "GAME_CODE", "GameCode", 0x00C},
	{FieldMakerCode, "MAKER_CODE", "MakerCode", 0x010},
	{FieldUnitCode, "UNIT_CODE", "UnitCode", 0x012},
	{FieldEncryptionSeedSelect, "ENCRYPTION_SEED_SELECT", "EncryptionSeedSelect", 0x013},
	{FieldDeviceCapacity, "DEVICE_CAPACITY", "DeviceCapacity", 0x014},
	{FieldReserved1, "RESERVED1", "Reserved1", 0x015},
	{FieldGameRevision, "GAME_REVISION", "GameRevision", 0x01C},
	{FieldRomVersion, "ROM_VERSION", "RomVersion", 0x01E},
	{FieldInternalFlags, "INTERNAL_FLAGS", "InternalFlags", 0x01F},
	{FieldARM9RomOffset, "ARM9_ROMOFFSET", "ARM9RomOffset", 0x020},
	{FieldARM9EntryAddress, "ARM9_ENTRYADDRESS", "ARM9EntryAddress", 0x024},
	{FieldARM9RamAddress, "ARM9_RAMADDRESS", "ARM9RamAddress", 0x028},
	{FieldARM9Size, "ARM9_SIZE", "ARM9Size", 0x02C},
	{FieldARM7RomOffset, "ARM7_ROMOFFSET", "ARM7RomOffset", 0x030},
	{FieldARM7EntryAddress, "ARM7_ENTRYADDRESS", "ARM7EntryAddress", 0x034},
	{FieldARM7RamAddress, "ARM7_RAMADDRESS", "ARM7RamAddress", 0x038},
	{FieldARM7Size, "ARM7_SIZE", "ARM7Size", 0x03C},
	{FieldFNTOffset, "FNT_OFFSET", "FNTOffset", 0x040},
	{FieldFNTSize, "FNT_SIZE", "FNTSize", 0x044},
	{FieldFATOffset, "FAT_OFFSET", "FATOffset", 0x048},
	{FieldFATSize, "FAT_SIZE", "FATSize", 0x04C},
	{FieldARM9OverlayOffset, "ARM9_OVT_OFFSET", "ARM9OverlayOffset", 0x050},
	{FieldARM9OverlaySize, "ARM9_OVT_SIZE", "ARM9OverlaySize", 0x054},
	{FieldARM7OverlayOffset, "ARM7_OVT_OFFSET", "ARM7OverlayOffset", 0x058},
	{FieldARM7OverlaySize, "ARM7_OVT_SIZE", "ARM7OverlaySize", 0x05C},
	{FieldNormalCardControl, "NORMAL_CARD_CONTROL", "NormalCardControl", 0x060},
	{FieldSecureCardControl, "SECURE_CARD_CONTROL", "SecureCardControl", 0x064},
	{FieldIconBannerOffset, "ICON_BANNER_OFFSET", "IconBannerOffset", 0x068},
	{FieldSecureAreaCRC, "SECURE_AREA_CRC", "SecureAreaCRC", 0x06C},
	{FieldSecureTransferDelay, "SECURE_TRANSFER_DELAY", "SecureTransferDelay", 0x06E},
	{FieldARM9Autoload, "ARM9_AUTOLOAD", "ARM9Autoload", 0x070},
	{FieldARM7Autoload, "ARM7_AUTOLOAD", "ARM7Autoload", 0x074},
	{FieldSecureDisable, "SECURE_DISABLE", "SecureDisable", 0x078},
	{FieldTotalRomSize, "TOTAL_ROM_SIZE", "TotalRomSize", 0x080},
	{FieldHeaderSize, "HEADER_SIZE", "HeaderSize", 0x084},
	{FieldReserved2, "RESERVED2", "Reserved2", 0x088},
	{FieldNintendoLogoCRC, "NINTENDO_LOGO_CRC", "NintendoLogoCRC", 0x15C},
	{FieldHeaderCRC, "HEADER_CRC", "HeaderCRC", 0x15E},
	{FieldHeaderCRCEnd, "HEADERCRC_END", "HeaderCRCEnd", 0x160},
	{FieldStaticFooter, "STATIC_FOOTER", "StaticFooter", 0x160},
	{FieldEntireHeader, "ENTIRE_HEADER", "EntireHeader", HeaderSize},
}

var (
	fieldIndex  = map[Field]int{}
	fieldOffset = map[Field]uint32{}
	fieldName   = map[Field]string{}
)

func init() {
	for i, s := range headerSchema {
		fieldIndex[s.field] = i
		fieldOffset[s.field] = s.offset
		fieldName[s.field] = s.name
	}
}

// succ returns the field declared immediately after f. FieldEntireHeader is
// a fixed point: succ(FieldEntireHeader) == FieldEntireHeader.
func succ(f Field) Field {
	if f == FieldEntireHeader {
		return FieldEntireHeader
	}
	idx := fieldIndex[f]
	return headerSchema[idx+1].field
}

// FieldInfo is one entry of the header field enumeration (section 6).
type FieldInfo struct {
	Field       Field
	Name        string // wire schema name, e.g. "ARM9_ROMOFFSET"
	DisplayName string // space-separated words, e.g. "Game Title"
	Offset      uint32
	Length      uint32
}

// displayName turns a Go-style field symbol (e.g. "ARM9RomOffset") into a
// space separated label by splitting on case transitions.
func displayName(symbol string) string {
	return strings.Join(camelcase.Split(symbol), " ")
}

// Fields returns the header field schema in declaration order.
func Fields() []FieldInfo {
	out := make([]FieldInfo, 0, len(headerSchema)-1)
	for _, s := range headerSchema {
		if s.field == FieldEntireHeader {
			continue
		}
		out = append(out, FieldInfo{
			Field:       s.field,
			Name:        s.name,
			DisplayName: displayName(s.symbol),
			Offset:      s.offset,
			Length:      fieldOffset[succ(s.field)] - s.offset,
		})
	}
	return out
}

// Header is a typed accessor over a fixed 0x4000-byte header block.
type Header struct {
	buf []byte
}

// NewHeader wraps buf as a Header. buf must be exactly HeaderSize bytes.
func NewHeader(buf []byte) (*Header, error) {
	if len(buf) != HeaderSize {
		return nil, newErr(SizeMismatch, "header must be %#x bytes, got %#x", HeaderSize, len(buf))
	}
	return &Header{buf: buf}, nil
}

// Buf returns the underlying header bytes.
func (h *Header) Buf() []byte {
	return h.buf
}

func (h *Header) fieldLen(f Field) uint32 {
	return fieldOffset[succ(f)] - fieldOffset[f]
}

// FieldBytes returns the raw bytes of field f.
func (h *Header) FieldBytes(f Field) []byte {
	off := fieldOffset[f]
	return h.buf[off : off+h.fieldLen(f)]
}

// SetFieldBytes writes raw bytes into field f. len(data) must equal the
// field's length.
func (h *Header) SetFieldBytes(f Field, data []byte) error {
	n := h.fieldLen(f)
	if uint32(len(data)) != n {
		return newErr(SizeMismatch, "field %s is %d bytes, got %d", fieldName[f], n, len(data))
	}
	off := fieldOffset[f]
	copy(h.buf[off:off+n], data)
	return nil
}

// GetLE interprets field f as a little-endian unsigned integer.
func (h *Header) GetLE(f Field) uint64 {
	b := h.FieldBytes(f)
	var v uint64
	for i, c := range b {
		v |= uint64(c) << (8 * uint(i))
	}
	return v
}

// SetLE serialises v into field f as a little-endian unsigned integer. It
// fails with Overflow if v does not fit in the field's byte length.
func (h *Header) SetLE(f Field, v uint64) error {
	n := h.fieldLen(f)
	if n < 8 && v >= uint64(1)<<(8*n) {
		return newErr(Overflow, "field %s (%d bytes) cannot hold value %#x", fieldName[f], n, v)
	}
	b := make([]byte, 8)
	if n > 8 {
		b = make([]byte, n)
	}
	binary.LittleEndian.PutUint64(b, v)
	return h.SetFieldBytes(f, b[:n])
}

// GetRomRegion returns the slice of image described by an offset field and
// a size field (both read as little-endian integers via this header).
func (h *Header) GetRomRegion(image []byte, offsetField, sizeField Field) ([]byte, error) {
	offset := h.GetLE(offsetField)
	size := h.GetLE(sizeField)
	if offset+size > uint64(len(image)) {
		return nil, newErr(OutOfBounds, "region [%#x, %#x) exceeds image of length %#x", offset, offset+size, len(image))
	}
	return image[offset : offset+size], nil
}
