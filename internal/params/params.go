package params

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"
)

const fieldCount = 9

// ErrMalformed is returned for parameter lines that cannot be decoded.
var ErrMalformed = errors.New("malformed render parameters")

// Parameters are the visual settings shared by the daemon and the render
// worker through a one-line file.
type Parameters struct {
	Foreground    string
	Background    string
	Issue         string
	Title         string
	CallingPoints string
	FontSize      int
	LeftPad       int
	RightPad      int
	Width         int
}

// Default mirrors the classic green-on-black board.
func Default() Parameters {
	return Parameters{
		Foreground:    "#0F0",
		Background:    "#000",
		Issue:         "#F00",
		Title:         "#0FF",
		CallingPoints: "#FFF",
		FontSize:      9,
		LeftPad:       3,
		RightPad:      3,
		Width:         720,
	}
}

// String encodes p as the single comma separated line.
func (p Parameters) String() string {
	return strings.Join([]string{
		p.Foreground, p.Background, p.Issue, p.Title, p.CallingPoints,
		strconv.Itoa(p.FontSize), strconv.Itoa(p.LeftPad), strconv.Itoa(p.RightPad), strconv.Itoa(p.Width),
	}, ",")
}

// Parse decodes a parameters line.
func Parse(line string) (Parameters, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != fieldCount {
		return Parameters{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformed, fieldCount, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	p := Parameters{
		Foreground:    parts[0],
		Background:    parts[1],
		Issue:         parts[2],
		Title:         parts[3],
		CallingPoints: parts[4],
	}
	for _, c := range []string{p.Foreground, p.Background, p.Issue, p.Title, p.CallingPoints} {
		if _, err := ParseColor(c); err != nil {
			return Parameters{}, err
		}
	}

	ints := []*int{&p.FontSize, &p.LeftPad, &p.RightPad, &p.Width}
	for i, dst := range ints {
		v, err := strconv.Atoi(parts[5+i])
		if err != nil {
			return Parameters{}, fmt.Errorf("%w: field %d: %v", ErrMalformed, 6+i, err)
		}
		if v < 0 {
			return Parameters{}, fmt.Errorf("%w: field %d is negative", ErrMalformed, 6+i)
		}
		*dst = v
	}
	if p.FontSize == 0 || p.Width == 0 {
		return Parameters{}, fmt.Errorf("%w: font size and width must be positive", ErrMalformed)
	}
	return p, nil
}

// Read parses the first line of r.
func Read(r io.Reader) (Parameters, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Parameters{}, err
		}
		return Parameters{}, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	return Parse(sc.Text())
}

// Load reads the parameters file at path.
func Load(path string) (Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return Parameters{}, err
	}
	defer f.Close()
	return Read(f)
}

// Save writes p to path.
func Save(path string, p Parameters) error {
	return os.WriteFile(path, []byte(p.String()), 0o644)
}

// ParseColor accepts #RGB and #RRGGBB.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if hex == s || (len(hex) != 3 && len(hex) != 6) {
		return color.RGBA{}, fmt.Errorf("%w: bad colour %q", ErrMalformed, s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: bad colour %q", ErrMalformed, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// MustColor is ParseColor for literals.
func MustColor(s string) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}
