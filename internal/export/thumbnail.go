package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"gestion/internal/cache"
	"gestion/internal/capture"
)

// ThumbnailSize bounds the longest side of an embedded receipt, in pixels.
const ThumbnailSize = 240

// Thumbnail is a downscaled receipt ready to embed.
type Thumbnail struct {
	JPEG          []byte
	Width, Height int
}

// Thumbnails decodes each distinct photo once.
type Thumbnails struct {
	cache *cache.LRU[Thumbnail]
}

func NewThumbnails(size int, ttl time.Duration) *Thumbnails {
	return &Thumbnails{cache: cache.NewLRU[Thumbnail](size, ttl)}
}

// Cache exposes the underlying cache for periodic cleanup.
func (t *Thumbnails) Cache() *cache.LRU[Thumbnail] {
	return t.cache
}

// Get returns the thumbnail of photo, keyed by its content hash.
func (t *Thumbnails) Get(photo []byte) (Thumbnail, error) {
	return cache.GetOrLoad[Thumbnail](t.cache, cache.Key(photo), func() (Thumbnail, error) {
		return makeThumbnail(photo)
	})
}

func makeThumbnail(photo []byte) (Thumbnail, error) {
	src, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("decode receipt: %w", err)
	}
	img := downscale(src, ThumbnailSize)
	data, err := capture.Encode(img)
	if err != nil {
		return Thumbnail{}, err
	}
	b := img.Bounds()
	return Thumbnail{JPEG: data, Width: b.Dx(), Height: b.Dy()}, nil
}

// downscale shrinks src with nearest-neighbour sampling so its longest side
// is at most max. Smaller images are returned as is.
func downscale(src image.Image, max int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return src
	}
	nw, nh := max, h*max/w
	if h > w {
		nw, nh = w*max/h, max
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := b.Min.Y + y*h/nh
		for x := 0; x < nw; x++ {
			dst.Set(x, y, src.At(b.Min.X+x*w/nw, sy))
		}
	}
	return dst
}
