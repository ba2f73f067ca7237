package render

import (
	"image/color"
	"testing"
)

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.RGBA
	}{
		{"black", color.RGBA{A: 0xff}},
		{"Purple", color.RGBA{R: 0x80, B: 0x80, A: 0xff}},
		{"#fff", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		{"#00ff80", color.RGBA{G: 0xff, B: 0x80, A: 0xff}},
		{"#ff000080", color.RGBA{R: 0x80, A: 0x80}},
	}
	for _, tc := range cases {
		got, err := ParseColor(tc.in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "notacolor", "#12", "#gggggg"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParsePalette(t *testing.T) {
	palette, err := ParsePalette([]string{"red", "#0000ff"})
	if err != nil || len(palette) != 2 {
		t.Fatalf("unexpected palette %v %v", palette, err)
	}
	if _, err := ParsePalette(nil); err == nil {
		t.Fatalf("expected error for empty palette")
	}
	if _, err := ParsePalette([]string{"red", "nope"}); err == nil {
		t.Fatalf("expected error for unknown color")
	}
}
