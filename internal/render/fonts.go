package render

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Font files shipped with the board renderer.
const (
	FontRegular     = "Lekton-Bold.ttf"
	FontTitle       = "sui generis rg.ttf"
	FontHackRegular = "Hack-Regular.ttf"
	FontHackBold    = "Hack-Bold.ttf"
	FontHackOblique = "Hack-RegularOblique.ttf"
)

// Fonts loads TrueType faces from a directory. Missing or broken files fall
// back to a built-in bitmap face so a board is still produced.
type Fonts struct {
	dir    string
	logger *log.Logger

	mu     sync.Mutex
	parsed map[string]*opentype.Font
	failed map[string]bool
}

// NewFonts reads faces from dir. An empty dir always uses the fallback.
func NewFonts(dir string, logger *log.Logger) *Fonts {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	return &Fonts{
		dir:    dir,
		logger: logger,
		parsed: make(map[string]*opentype.Font),
		failed: make(map[string]bool),
	}
}

// Face returns file at size points, or the fallback face.
func (f *Fonts) Face(file string, size float64) font.Face {
	face, err := f.load(file, size)
	if err != nil {
		f.mu.Lock()
		if !f.failed[file] {
			f.failed[file] = true
			f.logger.Printf("Warning: %v; using built-in font", err)
		}
		f.mu.Unlock()
		return basicfont.Face7x13
	}
	return face
}

func (f *Fonts) load(file string, size float64) (font.Face, error) {
	if f.dir == "" {
		return nil, fmt.Errorf("%w: no font directory configured", ErrDraw)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	otf, ok := f.parsed[file]
	if !ok {
		path := filepath.Join(f.dir, file)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read font %s: %v", ErrDraw, path, err)
		}
		otf, err = opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%w: parse font %s: %v", ErrDraw, path, err)
		}
		f.parsed[file] = otf
	}

	face, err := opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: face %s at %.0fpt: %v", ErrDraw, file, size, err)
	}
	return face, nil
}
