package board

import (
	"regexp"
	"strings"
	"time"
)

const (
	noticeWidth    = 130
	maxNoticeLines = 2
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
	entityPattern = regexp.MustCompile(`&[a-z]+;?`)

	// noticeCleanup is applied pair by pair, in order, so a removal can
	// expose a later pattern.
	noticeCleanup = [][2]string{
		{"href=", ""},
		{"http", ""},
		{"://", "www."},
		{`"`, ""},
		{"Travel News.", ""},
		{"Latest", ""},
		{"[", ""},
		{"]", ""},
	}
)

// FormatNotices cleans upstream station messages and wraps them into at
// most two "+++" lines. Blank input is returned as is.
func FormatNotices(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}

	msg := tagPattern.ReplaceAllString(raw, "")
	msg = entityPattern.ReplaceAllString(msg, " ")
	msg = strings.ReplaceAll(msg, "\n", "")
	for _, r := range noticeCleanup {
		msg = strings.ReplaceAll(msg, r[0], r[1])
	}

	var b strings.Builder
	for n := 1; n <= maxNoticeLines; n++ {
		if len(strings.TrimSpace(msg)) <= noticeWidth {
			b.WriteString(NoticePrefix + msg + "\n")
			break
		}
		cut := strings.IndexByte(msg[noticeWidth:], ' ')
		if cut < 0 {
			b.WriteString(NoticePrefix + msg + "\n")
			break
		}
		cut += noticeWidth
		b.WriteString(NoticePrefix + msg[:cut] + "\n")
		msg = msg[cut+1:]
	}
	return b.String()
}

// CallingPointsText lists each stop as "Name(time) ". The scheduled time is
// used while the stop is on time, otherwise the estimate. Stops without an
// estimate are left out.
func CallingPointsText(points []CallingPoint) string {
	var b strings.Builder
	for _, cp := range points {
		if cp.Estimated == "" {
			continue
		}
		t := cp.Estimated
		if strings.Contains(cp.Estimated, "On") {
			t = cp.Scheduled
		}
		b.WriteString(cp.Name + "(" + t + ") ")
	}
	return strings.ReplaceAll(b.String(), "On time", "")
}

// WrapCallingPoints splits text into ">>> " lines, breaking after the first
// closing parenthesis at or beyond width.
func WrapCallingPoints(text string, width int) []string {
	if text == "" {
		return nil
	}
	var out []string
	remaining := text
	for len(remaining) > width {
		cut := strings.IndexByte(remaining[width-1:], ')')
		if cut < 0 {
			break
		}
		cut += width - 1
		out = append(out, CallingPointPrefix+remaining[:cut+1])
		remaining = strings.TrimLeft(remaining[cut+1:], " \t")
	}
	if strings.TrimSpace(remaining) != "" {
		out = append(out, CallingPointPrefix+remaining)
	}
	return out
}

// UKTime formats t in London time, e.g. "Mon 14:30:45 UK Time". Without
// zone data it falls back to UTC labelled GMT.
func UKTime(t time.Time) string {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		return t.UTC().Format("Mon 15:04:05") + " GMT"
	}
	return t.In(loc).Format("Mon 15:04:05") + " UK Time"
}
