package imaging

import (
	"image"

	"github.com/nfnt/resize"
)

// Thumbnail scales img down so it fits within width x height while keeping
// its aspect ratio. Images that already fit are returned unchanged; nothing
// is ever enlarged.
func Thumbnail(img image.Image, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	return resize.Thumbnail(uint(width), uint(height), img, resize.Lanczos3)
}
