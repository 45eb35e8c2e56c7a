package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// White is the default padding color.
var White = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Offset is the top-left corner that centers an w x h image on a
// width x height canvas. Odd remainders are truncated.
func Offset(w, h, width, height int) image.Point {
	return image.Pt((width-w)/2, (height-h)/2)
}

// Pad places img at the center of a new width x height canvas filled with
// bg. When blend is set the image's alpha channel masks the paste,
// otherwise pixels are copied as-is.
func Pad(img image.Image, width, height int, bg color.Color, blend bool) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	b := img.Bounds()
	at := Offset(b.Dx(), b.Dy(), width, height)
	dst := image.Rectangle{Min: at, Max: at.Add(b.Size())}

	op := draw.Src
	if blend {
		op = draw.Over
	}
	draw.Draw(canvas, dst, img, b.Min, op)
	return canvas
}

// Normalize thumbnails img and pads it onto a width x height canvas.
func Normalize(img image.Image, width, height int, bg color.Color) *image.RGBA {
	blend := HasAlpha(img)
	return Pad(Thumbnail(img, width, height), width, height, bg, blend)
}

// ParseColor accepts "#rgb", "#rrggbb", "white" or "black".
func ParseColor(s string) (color.RGBA, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "white":
		return White, nil
	case "black":
		return color.RGBA{A: 0xff}, nil
	}

	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
