package ndsrom

import (
	"reflect"
	"testing"
)

func buildFAT(entries []FATEntry) []byte {
	var out []byte
	for _, e := range entries {
		b := make([]byte, 8)
		b[0] = byte(e.Start)
		b[1] = byte(e.Start >> 8)
		b[2] = byte(e.Start >> 16)
		b[3] = byte(e.Start >> 24)
		b[4] = byte(e.End)
		b[5] = byte(e.End >> 8)
		b[6] = byte(e.End >> 16)
		b[7] = byte(e.End >> 24)
		out = append(out, b...)
	}
	return out
}

func TestDecodeFATOrdersByAscendingStart(t *testing.T) {
	image := make([]byte, 100)
	fat := buildFAT([]FATEntry{
		{Start: 50, End: 60}, // file id 0
		{Start: 10, End: 20}, // file id 1
		{Start: 30, End: 40}, // file id 2
	})
	payloads, order, err := DecodeFAT(fat, image)
	if err != nil {
		t.Fatal(err)
	}
	if len(payloads) != 3 {
		t.Fatalf("got %d payloads; want 3", len(payloads))
	}
	want := []int{1, 2, 0}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v; want %v", order, want)
	}
}

func TestDecodeFATTruncatedImage(t *testing.T) {
	image := make([]byte, 10)
	fat := buildFAT([]FATEntry{{Start: 0, End: 1000}})
	if _, _, err := DecodeFAT(fat, image); err == nil {
		t.Fatal("expected TruncatedImage error")
	} else if e, ok := err.(*Error); !ok || e.Kind != TruncatedImage {
		t.Errorf("got %v; want TruncatedImage", err)
	}
}

func TestLayoutPayloadsAlignment(t *testing.T) {
	assignments := []FileAssignment{
		{FileID: 0, Payload: []byte{1, 2, 3}},
		{FileID: 1, Payload: []byte{4, 5}},
	}
	data, entries, end := LayoutPayloads(assignments, 0, 0xFF)
	e0 := entries[0]
	if e0.Start != 0 || e0.End != 3 {
		t.Errorf("entry 0 = %+v; want start 0 end 3", e0)
	}
	e1 := entries[1]
	if e1.Start != FATAlignment {
		t.Errorf("entry 1 start = %#x; want aligned to %#x", e1.Start, FATAlignment)
	}
	if end != uint64(e1.End) {
		t.Errorf("end = %#x; want %#x", end, e1.End)
	}
	if len(data) != int(end) {
		t.Errorf("len(data) = %d; want %d", len(data), end)
	}
	// Padding bytes between the two payloads must be the fill byte.
	for i := 3; i < FATAlignment; i++ {
		if data[i] != 0xFF {
			t.Fatalf("padding byte at %d = %#x; want 0xFF", i, data[i])
		}
	}
}

func TestDecodeFATOverlappingEntries(t *testing.T) {
	image := make([]byte, 100)
	fat := buildFAT([]FATEntry{
		{Start: 10, End: 30},
		{Start: 20, End: 40},
	})
	_, _, err := DecodeFAT(fat, image)
	if err == nil {
		t.Fatal("expected OutOfBounds error for overlapping entries")
	}
	if e, ok := err.(*Error); !ok || e.Kind != OutOfBounds {
		t.Errorf("got %v; want OutOfBounds", err)
	}
}

func TestDecodeFATZeroLengthEntriesDoNotOverlap(t *testing.T) {
	image := make([]byte, 100)
	fat := buildFAT([]FATEntry{
		{Start: 10, End: 10},
		{Start: 10, End: 10},
	})
	if _, _, err := DecodeFAT(fat, image); err != nil {
		t.Fatalf("unexpected error for coincident zero-length entries: %v", err)
	}
}

func TestEncodeFATTableRoundTrip(t *testing.T) {
	entries := map[uint32]FATEntry{
		0: {Start: 0x4000, End: 0x4010},
		1: {Start: 0x4200, End: 0x4210},
	}
	encoded := EncodeFATTable(entries, 2)
	payloads, _, err := DecodeFAT(encoded, make([]byte, 0x5000))
	if err != nil {
		t.Fatal(err)
	}
	if len(payloads) != 2 {
		t.Fatalf("got %d payloads; want 2", len(payloads))
	}
	if len(payloads[0]) != 0x10 || len(payloads[1]) != 0x10 {
		t.Errorf("unexpected payload lengths: %d, %d", len(payloads[0]), len(payloads[1]))
	}
}
