package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
)

var (
	black = color.RGBA{A: 0xff}
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

func TestNewCanvas_Bounds(t *testing.T) {
	testCases := []struct {
		name    string
		w, h    int
		wantErr bool
	}{
		{"normal", 720, 400, false},
		{"zero height", 720, 0, true},
		{"too tall", 414, MaxHeight + 1, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCanvas(tc.w, tc.h, black)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrDraw)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanvas_TextMarksPixels(t *testing.T) {
	c, err := NewCanvas(100, 30, black)
	require.NoError(t, err)

	adv := c.Text(2, 2, "Hi", white, basicfont.Face7x13)

	assert.Equal(t, 14, adv)
	lit := 0
	b := c.Image().Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := c.Image().At(x, y).RGBA(); r > 0 {
				lit++
			}
		}
	}
	assert.Greater(t, lit, 0)
}

func TestCanvas_RoundedRectAndCrop(t *testing.T) {
	c, err := NewCanvas(50, 50, black)
	require.NoError(t, err)

	c.FillRoundedRect(image.Rect(10, 10, 40, 40), 8, white)
	assert.Equal(t, white, c.Image().At(25, 25))
	assert.Equal(t, black, c.Image().At(10, 10))

	c.Crop(20)
	assert.Equal(t, 20, c.Height())
	c.Crop(100)
	assert.Equal(t, 20, c.Height())
}

func TestCanvas_SavePNG(t *testing.T) {
	c, err := NewCanvas(10, 10, white)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "board.png")
	require.NoError(t, c.SavePNG(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
}

func TestCanvas_SavePNGFileError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	c, err := NewCanvas(10, 10, white)
	require.NoError(t, err)

	err = c.SavePNG(filepath.Join(blocker, "board.png"))

	var fe *FileError
	assert.ErrorAs(t, err, &fe)
}

func TestFonts_Fallback(t *testing.T) {
	var buf bytes.Buffer
	fonts := NewFonts(t.TempDir(), log.New(&buf, "", 0))

	face := fonts.Face(FontRegular, 13)
	fonts.Face(FontRegular, 14)

	assert.Equal(t, basicfont.Face7x13, face)
	assert.Equal(t, 1, strings.Count(buf.String(), "Warning"))
	assert.Equal(t, 21, Measure(face, "abc"))
	assert.Equal(t, 13, LineHeight(face))
}
