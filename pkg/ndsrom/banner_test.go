package ndsrom

import "testing"

func TestNewBannerSizeMismatch(t *testing.T) {
	if _, err := NewBanner(make([]byte, BannerSize-1)); err == nil {
		t.Fatal("expected BadBanner error")
	} else if e, ok := err.(*Error); !ok || e.Kind != BadBanner {
		t.Errorf("got %v; want BadBanner", err)
	}
}

func TestBannerTitlesDecodesUTF16(t *testing.T) {
	buf := make([]byte, BannerSize)
	buf[0] = 1 // version

	// "hi" encoded as UTF-16LE at the first title slot, NUL padded.
	title := []byte{'h', 0, 'i', 0, 0, 0}
	copy(buf[bannerTitleOffset:], title)

	b, err := NewBanner(buf)
	if err != nil {
		t.Fatal(err)
	}
	if b.Version() != 1 {
		t.Errorf("Version() = %d; want 1", b.Version())
	}
	titles, err := b.Titles()
	if err != nil {
		t.Fatal(err)
	}
	if len(titles) != BannerTitleCount {
		t.Fatalf("got %d titles; want %d", len(titles), BannerTitleCount)
	}
	if titles[0] != "hi" {
		t.Errorf("titles[0] = %q; want %q", titles[0], "hi")
	}
	if titles[1] != "" {
		t.Errorf("titles[1] = %q; want empty", titles[1])
	}
}
