package board

import (
	"fmt"
	"strings"

	"departure-board-backend/internal/delay"
)

// AllDestinations means the route has no destination filter.
const AllDestinations = "ALL"

const (
	titleWidth    = 60
	destWidth     = 35
	platformWidth = 8
	timeWidth     = 10
	// A service row keeps at least this many dashes after the destination
	// so the column stays splittable.
	minSeparator = 3
	maxBodyLines = 31
)

// CallingPointWrap is the character count after which calling-point text is
// continued on another line.
const CallingPointWrap = 80

var headerFields = []string{"Destination", "Plat", "Sch", "Est", "By"}

// ServiceRecord is one departure as returned by the upstream board.
type ServiceRecord struct {
	Destination  string
	Scheduled    string
	Estimated    string
	OperatorName string
	OperatorCode string
	Platform     string
	ServiceID    string
}

// Operator returns the operator name, falling back to the code.
func (s ServiceRecord) Operator() string {
	if s.OperatorName != "" {
		return s.OperatorName
	}
	if s.OperatorCode != "" {
		return s.OperatorCode
	}
	return "Unknown"
}

// CallingPoint is a subsequent stop of a service.
type CallingPoint struct {
	Name      string
	Scheduled string
	Estimated string
}

// Entry is a service whose details were fetched successfully.
type Entry struct {
	Service       ServiceRecord
	CallingPoints []CallingPoint
}

// Input is everything needed to build one board.
type Input struct {
	StationCRS     string
	DestinationCRS string
	StationName    string
	// DestinationName is echoed in the title and the no-departures notice
	// when DestinationCRS is not AllDestinations.
	DestinationName      string
	Generated            string
	Messages             string
	Entries              []Entry
	IncludeCallingPoints bool
	Classifier           delay.Classifier
}

// Document is the line-oriented board text shared by both renderers.
type Document string

// Build produces the board document and reports whether any departures
// were written.
func Build(in Input) (Document, bool) {
	var b strings.Builder

	fmt.Fprintf(&b, "%s to %s\n", in.StationCRS, in.DestinationCRS)
	b.WriteString(TitleLine(in.StationName, viaLabel(in)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%s\n", StatsPrefix, in.Generated)
	b.WriteString(FormatNotices(in.Messages))
	b.WriteString("\n")

	if len(in.Entries) == 0 {
		b.WriteString(NoDepartures(in.StationName, filterName(in)))
		return Document(b.String()), false
	}

	b.WriteString(body(in))
	return Document(b.String()), true
}

// TitleLine is the station heading padded or cut to a fixed width.
func TitleLine(station, via string) string {
	return truncate(fmt.Sprintf("%s%s %s%s", TitlePrefix, station, via, strings.Repeat(" ", titleWidth)), titleWidth)
}

// NoDepartures is the two-line notice used in place of the table.
func NoDepartures(station, via string) string {
	direct := ""
	if via != "" {
		direct = " direct to " + via
	}
	return fmt.Sprintf("%s No departures found from %s%s today %s\n%s Check Operators website for more information on current schedule and issues %s",
		NoticeMarker, station, direct, NoticeMarker, NoticeMarker, NoticeMarker)
}

func viaLabel(in Input) string {
	if name := filterName(in); name != "" {
		return "(via:" + name + ")"
	}
	return ""
}

func filterName(in Input) string {
	if in.DestinationCRS == "" || in.DestinationCRS == AllDestinations {
		return ""
	}
	return in.DestinationName
}

// body writes the column header and per-service blocks, stopping after
// maxBodyLines logical lines.
func body(in Input) string {
	var lines []string
	lines = append(lines, Row(headerFields[0], headerFields[1], headerFields[2], headerFields[3], headerFields[4]))

	for _, e := range in.Entries {
		s := e.Service
		res := in.Classifier.Classify(s.Scheduled, s.Estimated)
		lines = append(lines, "\n"+Row(s.Destination, s.Platform, s.Scheduled, s.Estimated, s.Operator()))
		if strings.TrimSpace(res.Message) != "" {
			lines = append(lines, StatusPrefix+res.Message)
		}
		if in.IncludeCallingPoints {
			lines = append(lines, WrapCallingPoints(CallingPointsText(e.CallingPoints), CallingPointWrap)...)
		}
	}

	if len(lines) > maxBodyLines {
		lines = lines[:maxBodyLines]
	}
	return strings.Join(lines, "\n") + "\n"
}

// Row pads each column with dashes. The platform column is only emitted
// when a platform is known, which leaves a four-field row otherwise.
func Row(dest, platform, scheduled, estimated, operator string) string {
	dest = truncate(dest, destWidth-minSeparator)
	var b strings.Builder
	b.WriteString(padDashes(dest, destWidth))
	b.WriteString(" ")
	if platform != "" {
		b.WriteString(padDashes(platform, platformWidth))
	}
	b.WriteString(padDashes(scheduled, timeWidth))
	b.WriteString(padDashes(estimated, timeWidth))
	b.WriteString(operator)
	return b.String()
}

func padDashes(s string, width int) string {
	return truncate(s+strings.Repeat("-", width), width)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
