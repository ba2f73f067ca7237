// Package render rasterizes snapshots into fixed-size RGBA frames.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"rsoreplay/internal/snapshot"
)

type Options struct {
	Width      int
	Height     int
	GameWidth  float64
	GameHeight float64

	Background  color.RGBA
	StaticColor color.RGBA
	Palette     []color.RGBA

	// Skins replace the palette disk for movables when non-empty.
	Skins         []*image.RGBA
	IdentityCache int
	ResizeCache   int
	Seed          uint64
}

// Renderer maps game space onto pixel space. Movable colors follow draw
// position, not identity: the i-th drawn movable gets Palette[i%len]. The
// renderer is safe for concurrent use.
type Renderer struct {
	opts        Options
	scaleX      float64
	scaleY      float64
	radiusScale float64
	skins       *skinCache
}

func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %dx%d", opts.Width, opts.Height)
	}
	if opts.GameWidth <= 0 || opts.GameHeight <= 0 {
		return nil, fmt.Errorf("game size must be positive, got %vx%v", opts.GameWidth, opts.GameHeight)
	}
	if len(opts.Palette) == 0 {
		return nil, fmt.Errorf("palette is empty")
	}

	r := &Renderer{
		opts:   opts,
		scaleX: float64(opts.Width) / opts.GameWidth,
		scaleY: float64(opts.Height) / opts.GameHeight,
	}
	r.radiusScale = math.Min(r.scaleX, r.scaleY)

	if len(opts.Skins) > 0 {
		cache, err := newSkinCache(opts.Skins, opts.IdentityCache, opts.ResizeCache, opts.Seed)
		if err != nil {
			return nil, err
		}
		r.skins = cache
	}
	return r, nil
}

func (r *Renderer) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.opts.Width, r.opts.Height)
}

func (r *Renderer) Render(s snapshot.Snapshot) *image.RGBA {
	dst := image.NewRGBA(r.Bounds())
	r.RenderInto(dst, s)
	return dst
}

// RenderInto draws s over dst, which must have the renderer's bounds. Reusing
// one buffer across frames avoids an allocation per frame.
func (r *Renderer) RenderInto(dst *image.RGBA, s snapshot.Snapshot) {
	fill(dst, r.opts.Background)

	for _, st := range s.Entities.Statics {
		x, y, rad := r.toPixels(st.Circle)
		fillDisk(dst, x, y, rad, r.opts.StaticColor)
	}

	drawn := 0
	for _, m := range s.Entities.Movables {
		if !m.Alive {
			continue
		}
		x, y, rad := r.toPixels(m.Circle)
		if r.skins != nil && r.drawSkin(dst, m.Name, x, y, rad) {
			drawn++
			continue
		}
		fillDisk(dst, x, y, rad, r.opts.Palette[drawn%len(r.opts.Palette)])
		drawn++
	}
}

func (r *Renderer) toPixels(c snapshot.Circle) (x, y, radius float64) {
	return c.X * r.scaleX, c.Y * r.scaleY, c.Radius * r.radiusScale
}

// drawSkin reports false when the movable should be drawn as a plain disk:
// below one pixel, or larger than twice the frame, where scaling a skin would
// only allocate pixels that get clipped.
func (r *Renderer) drawSkin(dst *image.RGBA, identity string, x, y, radius float64) bool {
	diameter := math.Round(2 * radius)
	if !(diameter >= 1 && diameter <= float64(r.maxSkinSize())) {
		return false
	}
	size := int(diameter)
	skin := r.skins.sized(identity, size)
	at := image.Pt(int(math.Round(x-float64(size)/2)), int(math.Round(y-float64(size)/2)))
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(image.Pt(size, size))}, skin, image.Point{}, draw.Over)
	return true
}

func (r *Renderer) maxSkinSize() int {
	return 2 * max(r.opts.Width, r.opts.Height)
}

func fill(dst *image.RGBA, c color.RGBA) {
	pix := dst.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// fillDisk paints every pixel whose center lies within radius of (cx, cy).
func fillDisk(dst *image.RGBA, cx, cy, radius float64, c color.RGBA) {
	if radius <= 0 {
		return
	}
	b := dst.Bounds()
	x0 := max(b.Min.X, int(math.Floor(cx-radius)))
	x1 := min(b.Max.X, int(math.Ceil(cx+radius))+1)
	y0 := max(b.Min.Y, int(math.Floor(cy-radius)))
	y1 := min(b.Max.Y, int(math.Ceil(cy+radius))+1)
	r2 := radius * radius

	for py := y0; py < y1; py++ {
		dy := float64(py) + 0.5 - cy
		for px := x0; px < x1; px++ {
			dx := float64(px) + 0.5 - cx
			if dx*dx+dy*dy > r2 {
				continue
			}
			i := dst.PixOffset(px, py)
			if c.A == 0xff {
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, c.A
				continue
			}
			blend(dst.Pix[i:i+4], c)
		}
	}
}

// blend composites premultiplied c over the pixel p.
func blend(p []uint8, c color.RGBA) {
	inv := 255 - uint32(c.A)
	p[0] = uint8(uint32(c.R) + uint32(p[0])*inv/255)
	p[1] = uint8(uint32(c.G) + uint32(p[1])*inv/255)
	p[2] = uint8(uint32(c.B) + uint32(p[2])*inv/255)
	p[3] = uint8(uint32(c.A) + uint32(p[3])*inv/255)
}
