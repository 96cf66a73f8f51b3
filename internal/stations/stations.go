// Package stations maps station names to three-letter CRS codes.
package stations

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"departure-board-backend/internal/board"
)

// Unknown is returned for names not in the directory.
const Unknown = "ZZZ"

// AllDestinationsName is the display name of an unfiltered route.
const AllDestinationsName = "All Destinations"

// ErrEmpty is returned for a station file without entries.
var ErrEmpty = errors.New("station file is empty")

// Directory is a bidirectional CRS lookup.
type Directory struct {
	byName map[string]string
	byCRS  map[string]string
	// passThrough accepts any three letter code, for running without a
	// station file.
	passThrough bool
}

// Empty is a directory without a station file. Routes must then be
// configured by CRS.
func Empty() *Directory {
	return &Directory{byName: map[string]string{}, byCRS: map[string]string{}, passThrough: true}
}

// Parse reads "CRS,Station Name" lines.
func Parse(r io.Reader) (*Directory, error) {
	d := &Directory{byName: make(map[string]string), byCRS: make(map[string]string)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		crs, name, ok := strings.Cut(strings.TrimRight(sc.Text(), "\r"), ",")
		crs, name = strings.ToUpper(strings.TrimSpace(crs)), strings.TrimSpace(name)
		if !ok || len(crs) != 3 || name == "" {
			continue
		}
		d.byName[strings.ToLower(name)] = crs
		d.byCRS[crs] = name
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(d.byCRS) == 0 {
		return nil, ErrEmpty
	}
	return d, nil
}

// Load reads the station file at path.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("station file: %w", err)
	}
	defer f.Close()
	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Len is the number of stations.
func (d *Directory) Len() int { return len(d.byCRS) }

// Code returns the CRS for a station name, or Unknown. A known CRS is
// returned as is.
func (d *Directory) Code(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return Unknown
	}
	if crs, ok := d.byName[strings.ToLower(name)]; ok {
		return crs
	}
	if _, ok := d.byCRS[strings.ToUpper(name)]; ok {
		return strings.ToUpper(name)
	}
	if d.passThrough && len(name) == 3 {
		return strings.ToUpper(name)
	}
	return Unknown
}

// Name returns the station name for crs.
func (d *Directory) Name(crs string) (string, bool) {
	n, ok := d.byCRS[strings.ToUpper(crs)]
	return n, ok
}

// Destination resolves a route destination. Blank, "ALL" and
// "All Destinations" mean no filter.
func (d *Directory) Destination(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, board.AllDestinations) || strings.EqualFold(s, AllDestinationsName) {
		return board.AllDestinations
	}
	return d.Code(s)
}
