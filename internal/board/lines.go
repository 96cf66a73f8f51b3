package board

import (
	"regexp"
	"strings"
)

// Markers of the board text format.
const (
	TitlePrefix        = "Departures - "
	StatsPrefix        = "Generated on:"
	StatusPrefix       = "Status:"
	CallingPointPrefix = ">>> "
	NoticePrefix       = "+++"
	NoticeMarker       = "**"
	HeaderMarker       = "Destination"
)

// LineKind tags a single line of a Document.
type LineKind int

const (
	KindBlank LineKind = iota
	KindRoute
	KindTitle
	KindStats
	KindNotice
	KindNoDepartures
	KindHeader
	KindService
	KindStatus
	KindCallingPoint
	KindText
)

func (k LineKind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindRoute:
		return "route"
	case KindTitle:
		return "title"
	case KindStats:
		return "stats"
	case KindNotice:
		return "notice"
	case KindNoDepartures:
		return "no-departures"
	case KindHeader:
		return "header"
	case KindService:
		return "service"
	case KindStatus:
		return "status"
	case KindCallingPoint:
		return "calling-point"
	default:
		return "text"
	}
}

// Line is a classified document line.
type Line struct {
	Kind LineKind
	Text string
}

var separatorRun = regexp.MustCompile(`-{3,}`)

// Classify tags one line. The first line of a document is the route line and
// is tagged by Lines, not here.
func Classify(line string) LineKind {
	switch {
	case strings.TrimSpace(line) == "":
		return KindBlank
	case strings.HasPrefix(line, TitlePrefix):
		return KindTitle
	case strings.HasPrefix(line, StatsPrefix):
		return KindStats
	case strings.HasPrefix(line, NoticePrefix):
		return KindNotice
	case strings.Contains(line, HeaderMarker):
		return KindHeader
	case strings.Contains(line, NoticeMarker):
		return KindNoDepartures
	case strings.Contains(line, "++"):
		return KindNotice
	case strings.Contains(line, StatusPrefix):
		return KindStatus
	case strings.Contains(line, ">>>"):
		return KindCallingPoint
	case separatorRun.MatchString(line):
		return KindService
	default:
		return KindText
	}
}

// Lines splits a document into classified lines.
func (d Document) Lines() []Line {
	raw := strings.Split(strings.TrimRight(string(d), "\n"), "\n")
	out := make([]Line, 0, len(raw))
	for i, l := range raw {
		l = strings.TrimRight(l, "\r")
		kind := Classify(l)
		if i == 0 && kind == KindText {
			kind = KindRoute
		}
		out = append(out, Line{Kind: kind, Text: l})
	}
	return out
}

// SplitFields splits a service row on its dash separators and trims each
// field, dropping empty ones.
func SplitFields(row string) []string {
	var fields []string
	for _, f := range separatorRun.Split(row, -1) {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// compressedStatus matches a status word that merged with the operator
// column, e.g. "Cancelled-South Western Railway".
var compressedStatus = regexp.MustCompile(`(?i)^(Cancelled|Delayed|On time|Bus)\s*-\s*(.*)$`)

var clockTime = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// Columns is a service row mapped onto the five board columns.
type Columns struct {
	Destination string
	Platform    string
	Scheduled   string
	Estimated   string
	Operator    string
	// Merged is set when the estimate was split back out of the operator
	// field.
	Merged bool
}

// ServiceColumns maps the fields of a service row onto columns. A short
// estimate such as "Cancelled" is padded with a single dash, so it arrives
// joined to the operator and is split apart here. ok is false for three
// field rows without such a merge and for anything shorter.
func ServiceColumns(f []string) (Columns, bool) {
	switch {
	case len(f) >= 5:
		return Columns{Destination: f[0], Platform: f[1], Scheduled: f[2], Estimated: f[3], Operator: f[4]}, true

	case len(f) == 4:
		if m := compressedStatus.FindStringSubmatch(f[3]); m != nil && !clockTime.MatchString(f[1]) && clockTime.MatchString(f[2]) {
			return Columns{Destination: f[0], Platform: f[1], Scheduled: f[2], Estimated: m[1], Operator: strings.TrimSpace(m[2]), Merged: true}, true
		}
		return Columns{Destination: f[0], Scheduled: f[1], Estimated: f[2], Operator: f[3]}, true

	case len(f) == 3:
		m := compressedStatus.FindStringSubmatch(f[2])
		if m == nil {
			return Columns{}, false
		}
		return Columns{Destination: f[0], Scheduled: f[1], Estimated: m[1], Operator: strings.TrimSpace(m[2]), Merged: true}, true
	}
	return Columns{}, false
}
