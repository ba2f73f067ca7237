package render

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var skinExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

// LoadSkins decodes every image in dir, crops it to a centered square and
// clears everything outside the inscribed circle. Files are returned in name
// order so a seeded renderer assigns skins reproducibly.
func LoadSkins(dir string) ([]*image.RGBA, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading skins dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !skinExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	skins := make([]*image.RGBA, 0, len(names))
	for _, name := range names {
		skin, err := loadSkin(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		skins = append(skins, skin)
	}
	if len(skins) == 0 {
		return nil, fmt.Errorf("no skin images in %s", dir)
	}
	return skins, nil
}

func loadSkin(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening skin %s: %w", path, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding skin %s: %w", path, err)
	}
	return CircleMask(src), nil
}

// CircleMask returns the largest centered square of src with the pixels
// outside its inscribed circle made transparent.
func CircleMask(src image.Image) *image.RGBA {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	offset := image.Pt(b.Min.X+(b.Dx()-side)/2, b.Min.Y+(b.Dy()-side)/2)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, offset, draw.Src)

	r := float64(side) / 2
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			dx := float64(x) + 0.5 - r
			dy := float64(y) + 0.5 - r
			if math.Hypot(dx, dy) > r {
				i := dst.PixOffset(x, y)
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = 0, 0, 0, 0
			}
		}
	}
	return dst
}
