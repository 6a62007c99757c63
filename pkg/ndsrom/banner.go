package ndsrom

import (
	"golang.org/x/text/encoding/unicode"
)

// BannerTitleCount is the number of language title slots in the icon and
// banner block (Japanese, English, French, German, Italian, Spanish).
const BannerTitleCount = 6

// bannerTitleOffset is the byte offset of the first title slot; slot i
// starts bannerTitleLength*i bytes after it.
const bannerTitleOffset = 0x240

// bannerTitleLength is the size in bytes of one title slot: 128 UTF-16LE
// code units.
const bannerTitleLength = 256

// Banner wraps the fixed icon/banner block. Its internal tile and
// palette layout is treated as opaque; only the title strings are
// decoded.
type Banner struct {
	buf []byte
}

// NewBanner validates and wraps a banner block.
func NewBanner(buf []byte) (*Banner, error) {
	if len(buf) != BannerSize {
		return nil, newErr(BadBanner, "banner block length %d, want %d", len(buf), BannerSize)
	}
	return &Banner{buf: buf}, nil
}

// Buf returns the raw banner bytes.
func (b *Banner) Buf() []byte {
	return b.buf
}

// Version reports the banner's version word. Titles does not consult it.
func (b *Banner) Version() uint16 {
	return uint16(b.buf[0]) | uint16(b.buf[1])<<8
}

// Titles decodes the UTF-16LE title strings of all BannerTitleCount slots,
// whatever the banner's version, each cut at its first NUL.
func (b *Banner) Titles() ([]string, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	titles := make([]string, BannerTitleCount)
	for i := 0; i < BannerTitleCount; i++ {
		start := bannerTitleOffset + i*bannerTitleLength
		end := start + bannerTitleLength
		if end > len(b.buf) {
			break
		}
		raw := b.buf[start:end]
		text, err := dec.Bytes(raw)
		if err != nil {
			return nil, newErr(BadBanner, "failed to decode title %d: %v", i, err)
		}
		titles[i] = trimNUL(text)
	}
	return titles, nil
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
