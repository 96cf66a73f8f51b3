package classic

import (
	"fmt"
	"image/color"
	"strings"

	"golang.org/x/image/font"

	"departure-board-backend/internal/board"
	"departure-board-backend/internal/delay"
	"departure-board-backend/internal/params"
	"departure-board-backend/internal/render"
)

// DefaultMaxServices is how many service rows fit on a classic board.
const DefaultMaxServices = 5

const (
	lineBreak          = "ZZFZ"
	bodyRows           = 30
	titleGap           = 15
	serviceGap         = 5
	noticeIndent       = 10
	callingPointIndent = 5
)

// Column starts, in characters, for destination, platform, scheduled,
// estimated and operator.
var columns = [5]int{0, 36, 44, 54, 64}

// Faces are the fonts used on a classic board.
type Faces struct {
	Body          font.Face
	Title         font.Face
	Stats         font.Face
	Depart        font.Face
	Delay         font.Face
	CallingPoints font.Face
	Messages      font.Face
}

// LoadFaces picks the classic typefaces at sizes derived from fontSize.
func LoadFaces(fonts *render.Fonts, fontSize int) Faces {
	s := float64(fontSize)
	return Faces{
		Body:          fonts.Face(render.FontRegular, s+4),
		Title:         fonts.Face(render.FontTitle, s+12),
		Stats:         fonts.Face(render.FontRegular, s+5),
		Depart:        fonts.Face(render.FontRegular, s+8),
		Delay:         fonts.Face(render.FontRegular, s+4),
		CallingPoints: fonts.Face(render.FontHackOblique, s+2),
		Messages:      fonts.Face(render.FontHackOblique, s),
	}
}

// Op is a single positioned piece of text.
type Op struct {
	Kind  board.LineKind
	X, Y  int
	Text  string
	Color color.RGBA
	Face  font.Face
}

// Plan is a laid out board.
type Plan struct {
	Width    int
	Height   int
	Used     int
	Services int
	Ops      []Op
}

type palette struct {
	fg, bg, issue, title, cp color.RGBA
}

func newPalette(p params.Parameters) (palette, error) {
	var pal palette
	for _, c := range []struct {
		dst *color.RGBA
		hex string
	}{
		{&pal.fg, p.Foreground}, {&pal.bg, p.Background}, {&pal.issue, p.Issue},
		{&pal.title, p.Title}, {&pal.cp, p.CallingPoints},
	} {
		v, err := params.ParseColor(c.hex)
		if err != nil {
			return palette{}, err
		}
		*c.dst = v
	}
	return pal, nil
}

// Wrap rebuilds display lines from text. Words are added greedily while
// the measured width fits maxWidth; a word that does not fit starts a new
// line. Notice and status lines may run long.
func Wrap(text string, maxWidth int, measure func(string) int) []string {
	text = strings.ReplaceAll(text, "\n", " "+lineBreak+" ")

	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		switch {
		case word == lineBreak:
			lines = append(lines, strings.TrimPrefix(line, " "))
			line = ""
		case exempt(line):
			line += " " + word
		case line == "" || measure(strings.TrimPrefix(line+" "+word, " ")) <= maxWidth:
			line += " " + word
		default:
			lines = append(lines, strings.TrimPrefix(line, " "))
			line = " " + word
		}
	}
	if line != "" {
		lines = append(lines, strings.TrimPrefix(line, " "))
	}
	return lines
}

func exempt(line string) bool {
	return strings.Contains(line, "++") || strings.Contains(line, board.NoticeMarker) || strings.Contains(line, board.StatusPrefix)
}

// Layout positions every line of doc without touching pixels.
func Layout(doc board.Document, p params.Parameters, faces Faces, maxServices int) (Plan, error) {
	pal, err := newPalette(p)
	if err != nil {
		return Plan{}, err
	}
	if maxServices <= 0 {
		maxServices = DefaultMaxServices
	}

	base := render.LineHeight(faces.Body)
	lh := int(float64(base)/1.5 + 0.5)
	plan := Plan{Width: p.Width, Height: base * bodyRows}
	left := p.LeftPad

	var title, stats string
	var rest []board.Line
	for _, l := range doc.Lines() {
		switch l.Kind {
		case board.KindRoute:
		case board.KindTitle:
			title = strings.TrimSpace(l.Text)
		case board.KindStats:
			stats = l.Text
		default:
			rest = append(rest, l)
		}
	}

	y := 0
	plan.Ops = append(plan.Ops, Op{Kind: board.KindTitle, X: left, Y: y, Text: title, Color: pal.title, Face: faces.Title})
	y += lh + titleGap
	plan.Ops = append(plan.Ops, Op{Kind: board.KindStats, X: left, Y: y, Text: stats, Color: pal.cp, Face: faces.Stats})
	y += lh

	right := p.Width - p.RightPad
	measure := func(s string) int { return render.Measure(faces.Body, s) }
	lines := wrapLines(rest, right-left, measure)

	colX := func(i int) int { return left + render.Measure(faces.Depart, strings.Repeat("0", columns[i])) }
	row := func(kind board.LineKind, cells [5]string, col color.RGBA) []Op {
		return rowOps(kind, cells, y, col, faces.Depart, colX, right)
	}

draw:
	for _, line := range lines {
		kind := line.Kind
		switch kind {
		case board.KindHeader:
			y += lh / 2
			plan.Ops = append(plan.Ops, row(kind, positional(board.SplitFields(line.Text)), pal.cp)...)
			y += lh

		case board.KindBlank:
			y += lh / 2

		case board.KindNoDepartures:
			plan.Ops = append(plan.Ops, Op{Kind: kind, X: left + noticeIndent, Y: y, Text: line.Text, Color: pal.issue, Face: faces.Stats})
			y += lh * 6 / 5

		case board.KindNotice:
			plan.Ops = append(plan.Ops, Op{Kind: kind, X: left + noticeIndent, Y: y, Text: strings.ReplaceAll(line.Text, "+", ""), Color: pal.issue, Face: faces.Messages})
			y += render.LineHeight(faces.Messages)

		case board.KindStatus:
			plan.Ops = append(plan.Ops, Op{Kind: kind, X: left, Y: y, Text: line.Text, Color: pal.title, Face: faces.Delay})
			y += lh

		case board.KindCallingPoint:
			plan.Ops = append(plan.Ops, Op{Kind: kind, X: left + callingPointIndent, Y: y, Text: strings.TrimSpace(strings.ReplaceAll(line.Text, ">", " ")), Color: pal.cp, Face: faces.CallingPoints})
			y += lh

		case board.KindService:
			if plan.Services >= maxServices {
				break draw
			}
			cells, problem := serviceCells(board.SplitFields(line.Text))
			col := pal.fg
			if problem {
				col = pal.issue
			}
			plan.Ops = append(plan.Ops, row(kind, cells, col)...)
			y += lh + serviceGap
			plan.Services++

		default:
			plan.Ops = append(plan.Ops, Op{Kind: kind, X: left, Y: y, Text: line.Text, Color: pal.fg, Face: faces.Depart})
			y += lh
		}
	}

	plan.Used = y
	return plan, nil
}

// wrapLines breaks long lines to fit width. Pieces keep the kind of the
// line they came from. Service and header rows are never broken; their
// last column is clipped instead.
func wrapLines(lines []board.Line, width int, measure func(string) int) []board.Line {
	var out []board.Line
	for _, l := range lines {
		switch l.Kind {
		case board.KindService, board.KindHeader, board.KindBlank:
			out = append(out, l)
			continue
		}
		for _, piece := range Wrap(l.Text, width, measure) {
			out = append(out, board.Line{Kind: l.Kind, Text: piece})
		}
	}
	return out
}

// rowOps places each non-empty cell at its column, clipping the text so
// it ends before right.
func rowOps(kind board.LineKind, cells [5]string, y int, col color.RGBA, face font.Face, colX func(int) int, right int) []Op {
	ops := make([]Op, 0, len(cells))
	for i, text := range cells {
		if text == "" {
			continue
		}
		x := colX(i)
		text = clip(text, right-x, func(s string) int { return render.Measure(face, s) })
		if text == "" {
			continue
		}
		ops = append(ops, Op{Kind: kind, X: x, Y: y, Text: text, Color: col, Face: face})
	}
	return ops
}

func clip(s string, width int, measure func(string) int) string {
	r := []rune(s)
	for len(r) > 0 && measure(string(r)) > width {
		r = r[:len(r)-1]
	}
	return strings.TrimSpace(string(r))
}

// positional lays fields out left to right, skipping the platform column
// when a field is missing.
func positional(fields []string) [5]string {
	var cells [5]string
	for i, slot := range slotsFor(len(fields)) {
		cells[slot] = fields[i]
	}
	return cells
}

func slotsFor(n int) []int {
	switch n {
	case 4:
		return []int{0, 2, 3, 4}
	case 3:
		return []int{0, 2, 3}
	case 2:
		return []int{0, 2}
	default:
		s := make([]int, 0, n)
		for i := 0; i < n && i < 5; i++ {
			s = append(s, i)
		}
		return s
	}
}

// serviceCells maps a service row onto the columns and classifies its
// scheduled/estimated pair. Rows that cannot be mapped are drawn as they
// are and counted as problems.
func serviceCells(fields []string) ([5]string, bool) {
	c, ok := board.ServiceColumns(fields)
	if !ok {
		return positional(fields), true
	}
	cells := [5]string{c.Destination, c.Platform, c.Scheduled, c.Estimated, c.Operator}
	return cells, delay.Classify(c.Scheduled, c.Estimated).IsProblem
}

// Render draws doc onto a new canvas. Boards without departures are
// cropped to their content.
func Render(doc board.Document, p params.Parameters, faces Faces, departures bool) (*render.Canvas, Plan, error) {
	plan, err := Layout(doc, p, faces, DefaultMaxServices)
	if err != nil {
		return nil, Plan{}, err
	}
	pal, _ := newPalette(p)

	c, err := render.NewCanvas(plan.Width, plan.Height, pal.bg)
	if err != nil {
		return nil, Plan{}, fmt.Errorf("classic board: %w", err)
	}
	for _, op := range plan.Ops {
		c.Text(op.X, op.Y, op.Text, op.Color, op.Face)
	}
	if !departures {
		c.Crop(plan.Used + render.LineHeight(faces.Body))
	}
	return c, plan, nil
}
