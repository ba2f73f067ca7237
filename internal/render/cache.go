package render

import (
	"fmt"
	"image"
	"math/rand/v2"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"
)

type sizedKey struct {
	skin int
	size int
}

// skinCache assigns each movable identity a random skin on first sight and
// keeps resampled copies per (skin, size). Both maps are bounded LRUs;
// singleflight collapses concurrent first lookups of the same key.
type skinCache struct {
	skins []*image.RGBA

	mu   sync.Mutex
	rng  *rand.Rand
	byID *lru.Cache[string, int]

	resized *lru.Cache[sizedKey, *image.RGBA]
	group   singleflight.Group
}

func newSkinCache(skins []*image.RGBA, identities, sizes int, seed uint64) (*skinCache, error) {
	if identities <= 0 {
		identities = 4096
	}
	if sizes <= 0 {
		sizes = 512
	}
	byID, err := lru.New[string, int](identities)
	if err != nil {
		return nil, fmt.Errorf("identity cache: %w", err)
	}
	resized, err := lru.New[sizedKey, *image.RGBA](sizes)
	if err != nil {
		return nil, fmt.Errorf("resize cache: %w", err)
	}
	return &skinCache{
		skins:   skins,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		byID:    byID,
		resized: resized,
	}, nil
}

func (c *skinCache) assign(identity string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.byID.Get(identity); ok {
		return idx
	}
	idx := c.rng.IntN(len(c.skins))
	c.byID.Add(identity, idx)
	return idx
}

// sized returns the identity's skin scaled to size x size pixels.
func (c *skinCache) sized(identity string, size int) *image.RGBA {
	key := sizedKey{skin: c.assign(identity), size: size}
	if img, ok := c.resized.Get(key); ok {
		return img
	}

	v, _, _ := c.group.Do(strconv.Itoa(key.skin)+"/"+strconv.Itoa(size), func() (any, error) {
		if img, ok := c.resized.Get(key); ok {
			return img, nil
		}
		src := c.skins[key.skin]
		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		c.resized.Add(key, dst)
		return dst, nil
	})
	return v.(*image.RGBA)
}
