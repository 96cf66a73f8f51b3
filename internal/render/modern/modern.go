package modern

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"strings"

	"golang.org/x/image/font"

	"departure-board-backend/internal/board"
	"departure-board-backend/internal/params"
	"departure-board-backend/internal/render"
)

// Layout constants in pixels.
const (
	Width         = 414
	CardSpacing   = 12
	Margin        = 20
	CardPadding   = 16
	BorderRadius  = 8
	FooterHeight  = 60
	MaxServices   = 5
	MaxHeight     = render.MaxHeight
	noTrainsCard  = 150
	estimateCard  = 160
	estimateTop   = 120
	estimateEmpty = 200
	statusDot     = 12
	arrow         = "› "
)

// Font sizes in points.
const (
	SizeStation       = 26
	SizeDestination   = 18
	SizePlatform      = 20
	SizeTime          = 16
	SizeStatus        = 14
	SizeOperator      = 12
	SizeTimestamp     = 12
	SizeCallingPoints = 11
)

// Palette.
var (
	ColorBackground = params.MustColor("#1A1D29")
	ColorCard       = params.MustColor("#252938")
	ColorPrimary    = params.MustColor("#FFFFFF")
	ColorSecondary  = params.MustColor("#A0A4B8")
	ColorStation    = params.MustColor("#64B5F6")
	ColorOnTime     = params.MustColor("#00C853")
	ColorDelayed    = params.MustColor("#FF6B00")
	ColorCancelled  = params.MustColor("#F44336")
	ColorEarly      = params.MustColor("#2196F3")
	ColorPlatform   = params.MustColor("#FFC107")
	ColorOperator   = params.MustColor("#9E9E9E")
	ColorSeparator  = params.MustColor("#3A3F52")
)

// Faces are the fonts used on a modern board.
type Faces struct {
	Station       font.Face
	Destination   font.Face
	Platform      font.Face
	Time          font.Face
	Status        font.Face
	Operator      font.Face
	Timestamp     font.Face
	CallingPoints font.Face
}

// LoadFaces picks the Hack family at the modern sizes.
func LoadFaces(fonts *render.Fonts) Faces {
	return Faces{
		Station:       fonts.Face(render.FontHackBold, SizeStation),
		Destination:   fonts.Face(render.FontHackBold, SizeDestination),
		Platform:      fonts.Face(render.FontHackBold, SizePlatform),
		Time:          fonts.Face(render.FontHackRegular, SizeTime),
		Status:        fonts.Face(render.FontHackBold, SizeStatus),
		Operator:      fonts.Face(render.FontHackRegular, SizeOperator),
		Timestamp:     fonts.Face(render.FontHackRegular, SizeTimestamp),
		CallingPoints: fonts.Face(render.FontHackOblique, SizeCallingPoints),
	}
}

// StatusColor picks a colour by keyword.
func StatusColor(status string) color.RGBA {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "on time"):
		return ColorOnTime
	case strings.Contains(s, "cancel"):
		return ColorCancelled
	case strings.Contains(s, "late"), strings.Contains(s, "delay"):
		return ColorDelayed
	case strings.Contains(s, "early"):
		return ColorEarly
	default:
		return ColorSecondary
	}
}

// EstimateHeight is the surface height reserved before cropping.
func EstimateHeight(services int, hasMessages bool) int {
	h := estimateTop
	if services > 0 {
		h += min(services, MaxServices) * (estimateCard + CardSpacing)
	} else {
		h += estimateEmpty
	}
	if hasMessages {
		h += FooterHeight
	}
	return h + Margin*2
}

// Card is the measured content of one service.
type Card struct {
	Service      Service
	Platform     string
	Destination  string
	CallingLines []string
	Height       int
}

// NewCard measures a card for svc.
func NewCard(svc Service, cpFace font.Face) Card {
	c := Card{Service: svc, Platform: "Platform TBC", Destination: svc.Destination}
	if svc.Platform != "" {
		c.Platform = "Platform " + svc.Platform
	}
	if r := []rune(c.Destination); len(r) > 30 {
		c.Destination = string(r[:27]) + "..."
	}
	maxWidth := Width - 2*Margin - 2*CardPadding - 15
	c.CallingLines = WrapLines(SplitStations(svc.CallingPoints), maxWidth, func(s string) int {
		return render.Measure(cpFace, arrow+s)
	})
	c.Height = CardHeight(len(c.CallingLines))
	return c
}

// CardHeight is the card height for the given number of calling-point lines.
func CardHeight(callingLines int) int {
	h := CardPadding
	h += SizePlatform + 6
	h += SizeDestination + 6
	h += SizeStatus + 6
	h += SizeOperator + 4
	h += callingLines * (SizeCallingPoints + 2)
	return h + CardPadding
}

// SplitStations breaks "A(10:00) B C(10:05)" into one entry per stop,
// ending each at its closing parenthesis.
func SplitStations(text string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	for _, r := range text {
		cur.WriteRune(r)
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				if s := strings.TrimSpace(cur.String()); s != "" {
					out = append(out, s)
				}
				cur.Reset()
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// WrapLines packs items, space separated, into at most two lines no wider
// than maxWidth.
func WrapLines(items []string, maxWidth int, measure func(string) int) []string {
	var lines []string
	cur := ""
	for _, st := range items {
		test := strings.TrimSpace(cur + " " + st)
		if measure(test) <= maxWidth {
			cur = test
		} else {
			if cur != "" {
				lines = append(lines, cur)
			}
			cur = st
		}
		if len(lines) >= 2 {
			return lines
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// TitleLines fits the title in at most two lines, breaking before "to".
func TitleLines(title string, maxWidth int, measure func(string) int) []string {
	if measure(title) <= maxWidth {
		return []string{title}
	}
	if from, to, ok := strings.Cut(title, " to "); ok {
		return []string{from, "to " + to}
	}
	var lines []string
	cur := ""
	for _, w := range strings.Fields(title) {
		test := strings.TrimSpace(cur + " " + w)
		if measure(test) <= maxWidth {
			cur = test
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
		}
		cur = w
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	if len(lines) > 2 {
		lines = lines[:2]
	}
	return lines
}

// Result describes a rendered modern board.
type Result struct {
	Services []Service
	Report   ParseReport
	Cards    []Card
	Height   int
}

// Render parses doc and draws the card layout.
func Render(doc board.Document, faces Faces, logger *log.Logger) (*render.Canvas, Result, error) {
	header := ParseHeader(doc)
	services, report := Parse(doc, logger)
	res := Result{Services: services, Report: report}

	est := EstimateHeight(len(services), header.Messages != "")
	if est > MaxHeight {
		return nil, res, fmt.Errorf("%w: image height %dpx exceeds %dpx", render.ErrDraw, est, MaxHeight)
	}
	c, err := render.NewCanvas(Width, est, ColorBackground)
	if err != nil {
		return nil, res, err
	}

	y := drawHeader(c, header, faces, Margin)
	if len(services) > 0 {
		for _, svc := range services[:min(len(services), MaxServices)] {
			card := NewCard(svc, faces.CallingPoints)
			drawCard(c, card, faces, Margin, y)
			res.Cards = append(res.Cards, card)
			y += card.Height + CardSpacing
		}
	} else {
		y = drawNoTrains(c, stationName(header), faces, y)
	}
	if header.Messages != "" {
		y = drawFooter(c, header.Messages, faces, y)
	}

	res.Height = min(y+Margin, c.Height())
	c.Crop(res.Height)
	return c, res, nil
}

func stationName(h Header) string {
	if h.From != "" {
		return h.From
	}
	from, _, _ := strings.Cut(h.Route, " to ")
	return from
}

func drawHeader(c *render.Canvas, h Header, faces Faces, y int) int {
	measure := func(s string) int { return render.Measure(faces.Station, s) }
	for _, line := range TitleLines(h.Title(), Width-2*Margin, measure) {
		c.Text(Margin, y, line, ColorStation, faces.Station)
		y += SizeStation + 4
	}
	y += 4
	c.Text(Margin, y, "Departures", ColorPrimary, faces.Status)
	y += SizeStatus + 6
	c.Text(Margin, y, h.Timestamp, ColorSecondary, faces.Timestamp)
	y += SizeTimestamp + 12
	c.FillRect(image.Rect(Margin, y, Width-Margin, y+1), ColorSeparator)
	return y + 12
}

func drawCard(c *render.Canvas, card Card, faces Faces, x, y int) {
	x2 := x + Width - 2*Margin
	c.FillRoundedRect(image.Rect(x, y, x2, y+card.Height), BorderRadius, ColorCard)

	cx := x + CardPadding
	row := y + CardPadding

	c.Text(cx, row, card.Platform, ColorPlatform, faces.Platform)
	tw := render.Measure(faces.Time, card.Service.Scheduled)
	c.Text(x2-CardPadding-tw, row, card.Service.Scheduled, ColorPrimary, faces.Time)
	row += SizePlatform + 6

	c.Text(cx, row, card.Destination, ColorPrimary, faces.Destination)
	row += SizeDestination + 6

	col := StatusColor(card.Service.Status)
	dotY := row + (SizeStatus-statusDot)/2
	c.FillCircle(cx+statusDot/2, dotY+statusDot/2, statusDot/2, col)
	c.Text(cx+statusDot+8, row, card.Service.Status, col, faces.Status)
	row += SizeStatus + 6

	c.Text(cx, row, card.Service.Operator, ColorOperator, faces.Operator)
	row += SizeOperator + 4

	indent := render.Measure(faces.CallingPoints, arrow)
	for i, line := range card.CallingLines {
		if i == 0 {
			c.Text(cx, row, arrow+line, ColorSecondary, faces.CallingPoints)
		} else {
			c.Text(cx+indent, row, line, ColorSecondary, faces.CallingPoints)
		}
		row += SizeCallingPoints + 2
	}
}

func drawNoTrains(c *render.Canvas, station string, faces Faces, y int) int {
	c.FillRoundedRect(image.Rect(Margin, y, Width-Margin, y+noTrainsCard), BorderRadius, ColorCard)
	my := y + 40
	for _, line := range []string{
		"No departures found",
		"from " + station,
		"",
		"Check operator website for",
		"current schedule and issues",
	} {
		if line != "" {
			tw := render.Measure(faces.Status, line)
			c.Text((Width-tw)/2, my, line, ColorSecondary, faces.Status)
		}
		my += SizeStatus + 4
	}
	return y + noTrainsCard + Margin
}

func drawFooter(c *render.Canvas, messages string, faces Faces, y int) int {
	y += 12
	measure := func(s string) int { return render.Measure(faces.Timestamp, s) }
	lines := WrapLines(strings.Fields(messages), Width-2*Margin, measure)
	for _, line := range lines {
		c.Text(Margin, y, line, ColorDelayed, faces.Timestamp)
		y += SizeTimestamp + 4
	}
	return y + 16
}
