package ndsrom

import (
	"encoding/binary"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func newTestHeader(t *testing.T) *Header {
	t.Helper()
	buf := make([]byte, HeaderSize)
	h, err := NewHeader(buf)
	require.NoError(t, err)
	require.NoError(t, h.SetFieldBytes(FieldGameTitle, []byte("TESTGAME\x00\x00\x00\x00")))
	require.NoError(t, h.SetLE(FieldARM9EntryAddress, 0x02000800))
	require.NoError(t, h.SetLE(FieldARM9RamAddress, 0x02000000))
	require.NoError(t, h.SetLE(FieldARM7EntryAddress, 0x02380000))
	require.NoError(t, h.SetLE(FieldARM7RamAddress, 0x02380000))
	return h
}

func emptyRom(t *testing.T) *Rom {
	return &Rom{
		Header: newTestHeader(t),
		ARM9:   []byte{0xAA, 0xBB, 0xCC, 0xDD},
		ARM7:   []byte{0x11, 0x22, 0x33, 0x44},
		Files:  map[string][]byte{},
		Banner: make([]byte, BannerSize),
	}
}

func TestComposeDecomposeEmptyRom(t *testing.T) {
	rom := emptyRom(t)
	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	decoded, err := Decompose(img)
	require.NoError(t, err)
	require.Equal(t, rom.ARM9, decoded.ARM9)
	require.Equal(t, rom.ARM7, decoded.ARM7)
	require.Empty(t, decoded.Files)
	require.Len(t, decoded.ARM9Overlays, 0)
	require.Len(t, decoded.ARM7Overlays, 0)
}

func TestComposeDecomposeSingleFile(t *testing.T) {
	rom := emptyRom(t)
	rom.Files["/a"] = []byte("hello")
	rom.FileOrder = []string{"/a"}

	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	decoded, err := Decompose(img)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), decoded.Files["/a"])
	require.Equal(t, []string{"/a"}, decoded.FileOrder)
}

func TestComposeDecomposeNestedFile(t *testing.T) {
	rom := emptyRom(t)
	rom.Files["/d/f"] = []byte("nested")
	rom.FileOrder = []string{"/d/f"}

	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	decoded, err := Decompose(img)
	require.NoError(t, err)
	require.Equal(t, []byte("nested"), decoded.Files["/d/f"])
}

func TestComposeMissingFromFileOrderAppendedAtTail(t *testing.T) {
	rom := emptyRom(t)
	rom.Files["/a"] = []byte("aaaa")
	rom.Files["/x"] = []byte("xxxx")
	rom.FileOrder = []string{"/a"} // /x intentionally omitted

	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	decoded, err := Decompose(img)
	require.NoError(t, err)
	require.Equal(t, []string{"/a", "/x"}, decoded.FileOrder)
}

func TestComposeOverlayOnlyRom(t *testing.T) {
	rom := emptyRom(t)
	rom.ARM9Overlays = []Overlay{
		{ID: 0, RAMAddress: 0x02004000, RAMSize: 16, Data: []byte("overlaydata-----")},
	}

	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	decoded, err := Decompose(img)
	require.NoError(t, err)
	require.Len(t, decoded.ARM9Overlays, 1)
	require.Equal(t, uint32(0), decoded.ARM9Overlays[0].FileID)
	require.Empty(t, decoded.Files)
}

func TestComposeWritesValidHeaderCRC(t *testing.T) {
	rom := emptyRom(t)
	rom.Files["/a"] = []byte("hello")
	rom.FileOrder = []string{"/a"}

	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	h, err := NewHeader(img[:HeaderSize])
	require.NoError(t, err)
	want := CRC16(img[:fieldOffset[FieldHeaderCRC]], 0xFFFF)
	require.Equal(t, want, uint16(h.GetLE(FieldHeaderCRC)))
}

func TestComposeFileIDMonotonicity(t *testing.T) {
	rom := emptyRom(t)
	rom.ARM9Overlays = []Overlay{{ID: 0, Data: []byte{1, 2, 3, 4}}}
	rom.ARM7Overlays = []Overlay{{ID: 0, Data: []byte{5, 6, 7, 8}}}
	rom.Files["/a"] = []byte("aaaa")
	rom.Files["/b"] = []byte("bbbb")
	rom.FileOrder = []string{"/a", "/b"}

	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	h, err := NewHeader(img[:HeaderSize])
	require.NoError(t, err)
	fat, err := h.GetRomRegion(img, FieldFATOffset, FieldFATSize)
	require.NoError(t, err)
	payloads, _, err := DecodeFAT(fat, img)
	require.NoError(t, err)
	require.Len(t, payloads, 4)

	var prevEnd uint32
	for i, p := range payloads {
		off := i * FATEntryLength
		start := uint32(fat[off]) | uint32(fat[off+1])<<8 | uint32(fat[off+2])<<16 | uint32(fat[off+3])<<24
		require.GreaterOrEqual(t, start, prevEnd)
		prevEnd = start + uint32(len(p))
	}
}

func TestComposeTailFillToCapacity(t *testing.T) {
	rom := emptyRom(t)
	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillTail: true, FillWith: 0xFF})
	require.NoError(t, err)

	h, err := NewHeader(img[:HeaderSize])
	require.NoError(t, err)
	_, capacityBytes, err := deviceCapacityForSize(h.GetLE(FieldTotalRomSize))
	require.NoError(t, err)
	require.Equal(t, int(capacityBytes), len(img))
}

func TestComposeDecomposeNitrocodeFooter(t *testing.T) {
	rom := emptyRom(t)
	footer := make([]byte, 12)
	binary.LittleEndian.PutUint32(footer[0:4], nitrocodeMagic)
	binary.LittleEndian.PutUint32(footer[4:8], 0x12345678)
	binary.LittleEndian.PutUint32(footer[8:12], 0x9ABCDEF0)
	rom.ARM9Nitrocode = footer

	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	decoded, err := Decompose(img)
	require.NoError(t, err)
	require.Equal(t, footer, decoded.ARM9Nitrocode)
	require.Equal(t, rom.ARM9, decoded.ARM9)
}

func TestDecomposeNoNitrocodeFooterWhenAbsent(t *testing.T) {
	rom := emptyRom(t)
	img, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	decoded, err := Decompose(img)
	require.NoError(t, err)
	require.Nil(t, decoded.ARM9Nitrocode)
}

func TestValidateRomAggregatesMultipleProblems(t *testing.T) {
	rom := emptyRom(t)
	rom.Banner = make([]byte, BannerSize-1)
	rom.Files["bad-path"] = []byte("x")        // InvalidPath: not absolute
	rom.Files["/dup"] = []byte("a")
	rom.Files["/dup/x"] = []byte("b") // collides with /dup as a directory

	_, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.Error(t, err)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "expected *multierror.Error aggregating multiple problems, got %T: %v", err, err)
	require.GreaterOrEqual(t, len(merr.Errors), 2)
}

func TestComposeIdempotence(t *testing.T) {
	rom := emptyRom(t)
	rom.Files["/a"] = []byte("hello")
	rom.FileOrder = []string{"/a"}

	img1, err := rom.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	decoded, err := Decompose(img1)
	require.NoError(t, err)

	img2, err := decoded.Compose(ComposeOptions{StorageType: StoragePROM, FillWith: 0xFF})
	require.NoError(t, err)

	require.Equal(t, img1, img2)
}
