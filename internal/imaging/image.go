// Package imaging holds the raster operations used to normalize a dataset:
// decoding, thumbnailing, padding onto a fixed canvas and re-encoding.
package imaging

import (
	"fmt"
	"image"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Decode reads a raster image and reports the registered format name
// (jpeg, png, gif, bmp or tiff).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// DecodeFile opens and decodes the image at path.
func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	return Decode(f)
}

// DecodeConfig returns the dimensions and format without decoding pixels.
func DecodeConfig(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("decode config: %w", err)
	}
	return cfg, format, nil
}

type opaquer interface {
	Opaque() bool
}

// HasAlpha reports whether img carries transparency that has to be blended
// rather than pasted. Non-premultiplied and alpha-only images always count;
// premultiplied RGBA only when some pixel is translucent, since the PNG
// decoder returns opaque truecolor images as *image.RGBA.
func HasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.Alpha, *image.Alpha16:
		return true
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	case *image.RGBA, *image.RGBA64:
		return !m.(opaquer).Opaque()
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return false
	}
	if o, ok := img.(opaquer); ok {
		return !o.Opaque()
	}
	return false
}
