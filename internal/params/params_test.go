package params

import (
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParametersString(t *testing.T) {
	assert.Equal(t, "#0F0,#000,#F00,#0FF,#FFF,9,3,3,720", Default().String())
}

func TestParse(t *testing.T) {
	testCases := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{"default line", "#0F0,#000,#F00,#0FF,#FFF,9,3,3,720", false},
		{"long colours and trailing newline", "#00FF00,#000000,#FF0000,#00FFFF,#FFFFFF,12,5,5,414\n", false},
		{"too few fields", "#0F0,#000,#F00,9,3,3,720", true},
		{"colour without hash", "0F0,#000,#F00,#0FF,#FFF,9,3,3,720", true},
		{"four digit colour", "#0F0F,#000,#F00,#0FF,#FFF,9,3,3,720", true},
		{"non numeric size", "#0F0,#000,#F00,#0FF,#FFF,big,3,3,720", true},
		{"zero width", "#0F0,#000,#F00,#0FF,#FFF,9,3,3,0", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.line)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trainparameters.txt")
	p := Default()
	p.Width = 414

	require.NoError(t, Save(path, p))
	got, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestRead_Empty(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#0F8")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x00, G: 0xff, B: 0x88, A: 0xff}, c)

	c, err = ParseColor("#1A1D29")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x1a, G: 0x1d, B: 0x29, A: 0xff}, c)

	_, err = ParseColor("#GGG")
	assert.Error(t, err)
}
