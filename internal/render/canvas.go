package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// MaxHeight bounds any surface we allocate.
const MaxHeight = 10000

// ErrDraw marks failures inside the drawing layer.
var ErrDraw = errors.New("drawing failed")

// FileError is an I/O failure on one of the worker's paths.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("file %s: %v", e.Path, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }

// Canvas is an RGBA surface with text and shape helpers.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas allocates a w x h surface filled with bg.
func NewCanvas(w, h int, bg color.Color) (*Canvas, error) {
	if w <= 0 || h <= 0 || h > MaxHeight {
		return nil, fmt.Errorf("%w: surface %dx%d out of range", ErrDraw, w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return &Canvas{img: img}, nil
}

// Width of the surface.
func (c *Canvas) Width() int { return c.img.Bounds().Dx() }

// Height of the surface.
func (c *Canvas) Height() int { return c.img.Bounds().Dy() }

// Image exposes the underlying surface.
func (c *Canvas) Image() image.Image { return c.img }

// Text draws s with its top-left corner at (x, y) and returns the advance.
func (c *Canvas) Text(x, y int, s string, col color.Color, face font.Face) int {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y) + face.Metrics().Ascent},
	}
	d.DrawString(s)
	return (d.Dot.X - fixed.I(x)).Ceil()
}

// FillRect paints r.
func (c *Canvas) FillRect(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Over)
}

// FillCircle paints a disc of radius r centred on (cx, cy).
func (c *Canvas) FillCircle(cx, cy, r int, col color.Color) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				c.img.Set(cx+dx, cy+dy, col)
			}
		}
	}
}

// FillRoundedRect paints r with corners of the given radius.
func (c *Canvas) FillRoundedRect(r image.Rectangle, radius int, col color.Color) {
	if radius*2 > r.Dx() || radius*2 > r.Dy() {
		radius = min(r.Dx(), r.Dy()) / 2
	}
	c.FillRect(image.Rect(r.Min.X+radius, r.Min.Y, r.Max.X-radius, r.Max.Y), col)
	c.FillRect(image.Rect(r.Min.X, r.Min.Y+radius, r.Max.X, r.Max.Y-radius), col)
	c.FillCircle(r.Min.X+radius, r.Min.Y+radius, radius, col)
	c.FillCircle(r.Max.X-radius-1, r.Min.Y+radius, radius, col)
	c.FillCircle(r.Min.X+radius, r.Max.Y-radius-1, radius, col)
	c.FillCircle(r.Max.X-radius-1, r.Max.Y-radius-1, radius, col)
}

// Crop shrinks the surface to the first h rows.
func (c *Canvas) Crop(h int) {
	if h <= 0 || h >= c.Height() {
		return
	}
	c.img = c.img.SubImage(image.Rect(0, 0, c.Width(), h)).(*image.RGBA)
}

// SavePNG writes the surface to path, creating the directory if needed.
func (c *Canvas) SavePNG(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &FileError{Path: path, Err: err}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	if err := png.Encode(f, c.img); err != nil {
		f.Close()
		return fmt.Errorf("%w: encode png: %v", ErrDraw, err)
	}
	if err := f.Close(); err != nil {
		return &FileError{Path: path, Err: err}
	}
	return nil
}

// Measure returns the advance width of s in face.
func Measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// LineHeight returns the recommended line spacing of face.
func LineHeight(face font.Face) int {
	return face.Metrics().Height.Ceil()
}
