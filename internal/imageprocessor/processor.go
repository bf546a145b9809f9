// Package imageprocessor inspects uploaded images without decoding pixels.
package imageprocessor

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels rejects headers announcing absurd canvases, which are either
// corrupt or decompression bombs aimed at whoever renders them.
const MaxPixels = 100_000_000

type Dimensions struct {
	Width  int
	Height int
}

// Probe reads the image header at the start of head. ok is false when the
// format is unknown, the header extends past head, or the size is implausible.
func Probe(head []byte) (Dimensions, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(head))
	if err != nil {
		return Dimensions{}, false
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Dimensions{}, false
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, true
}
