package modern

import (
	"log"
	"strings"

	"departure-board-backend/internal/board"
)

// Service is a departure recovered from board text.
type Service struct {
	Destination   string
	Platform      string
	Scheduled     string
	Estimated     string
	Operator      string
	Status        string
	CallingPoints string
}

// SkippedLine records a line the parser could not use.
type SkippedLine struct {
	Number int
	Text   string
	Fields int
	Reason string
}

// ParseReport counts lines dropped while parsing.
type ParseReport struct {
	Malformed int
	Orphans   int
	Skipped   []SkippedLine
}

// Total is the number of skipped lines.
func (r ParseReport) Total() int { return r.Malformed + r.Orphans }

// Header is the non-tabular part of a board.
type Header struct {
	Route     string
	From      string
	To        string
	Timestamp string
	Messages  string
}

// Title is "FROM to TO", or just FROM without a destination filter.
func (h Header) Title() string {
	switch {
	case h.From == "":
		return h.Route
	case h.To == "":
		return h.From
	default:
		return h.From + " to " + h.To
	}
}

// ParseHeader pulls the route, title, timestamp and notices out of doc.
func ParseHeader(doc board.Document) Header {
	var h Header
	var notices []string
	for _, l := range doc.Lines() {
		switch l.Kind {
		case board.KindRoute:
			h.Route = strings.TrimSpace(l.Text)
		case board.KindTitle:
			h.From, h.To = splitTitle(l.Text)
		case board.KindStats:
			h.Timestamp = strings.TrimSpace(strings.TrimPrefix(l.Text, board.StatsPrefix))
		case board.KindNotice:
			notices = append(notices, strings.TrimSpace(strings.ReplaceAll(l.Text, "+", "")))
		}
	}
	h.Messages = strings.Join(notices, " ")
	return h
}

// splitTitle handles "Departures - A (via:B)" and the truncated
// "Departures - A (via:B" a fixed width title can leave.
func splitTitle(line string) (string, string) {
	names := strings.TrimSpace(strings.TrimPrefix(line, board.TitlePrefix))
	from, via, ok := strings.Cut(names, "(via:")
	if !ok {
		return names, ""
	}
	return strings.TrimSpace(from), strings.TrimSpace(strings.TrimRight(strings.TrimSpace(via), ")"))
}

// Parse recovers services from doc. Malformed rows are dropped and
// counted; calling points that follow a dropped row are orphans.
func Parse(doc board.Document, logger *log.Logger) ([]Service, ParseReport) {
	if logger == nil {
		logger = log.Default()
	}

	var (
		services []Service
		current  *Service
		report   ParseReport
	)

	for i, l := range doc.Lines() {
		text := strings.TrimSpace(l.Text)
		switch l.Kind {
		case board.KindService:
			fields := board.SplitFields(text)
			svc, ok := fromFields(fields)
			if !ok {
				report.Malformed++
				report.Skipped = append(report.Skipped, SkippedLine{Number: i + 1, Text: text, Fields: len(fields), Reason: "malformed service"})
				logger.Printf("Warning: skipping malformed service line %d (%d fields): %.80s", i+1, len(fields), text)
				current = nil
				continue
			}
			services = append(services, svc)
			current = &services[len(services)-1]

		case board.KindStatus:
			if current != nil {
				_, status, _ := strings.Cut(text, board.StatusPrefix)
				current.Status = strings.TrimSpace(status)
			}

		case board.KindCallingPoint:
			if current == nil {
				report.Orphans++
				report.Skipped = append(report.Skipped, SkippedLine{Number: i + 1, Text: text, Reason: "orphaned calling points"})
				logger.Printf("Warning: orphaned calling points line %d", i+1)
				continue
			}
			cp := strings.TrimSpace(strings.ReplaceAll(text, ">", ""))
			if current.CallingPoints == "" {
				current.CallingPoints = cp
			} else {
				current.CallingPoints += " " + cp
			}
		}
	}

	if report.Total() > 0 {
		logger.Printf("Parsing summary: skipped %d lines, parsed %d services", report.Total(), len(services))
	}
	return services, report
}

func fromFields(f []string) (Service, bool) {
	c, ok := board.ServiceColumns(f)
	if !ok {
		return Service{}, false
	}
	svc := Service{
		Destination: c.Destination,
		Platform:    c.Platform,
		Scheduled:   c.Scheduled,
		Estimated:   c.Estimated,
		Operator:    c.Operator,
		Status:      c.Estimated,
	}
	if c.Merged {
		svc.Operator = operatorOr(c.Operator)
	}
	return svc, true
}

func operatorOr(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return "Unknown"
}
