package delay

import (
	"fmt"
	"strconv"
	"strings"
)

// Status tokens as sent by the upstream feed or produced by Classify.
const (
	OnTimeToken  = "On time"
	OnTimeExact  = "On Time"
	Cancelled    = "Cancelled"
	Delayed      = "Delayed"
	minutesInDay = 24 * 60
)

// Result is the timeliness of a single service.
type Result struct {
	IsProblem bool
	Message   string
}

// Classifier turns a scheduled/estimated pair into a Result.
// With LegacyMidnight set, deltas are taken as-is, so a service scheduled
// at 23:55 and expected at 00:05 is reported as hugely early.
type Classifier struct {
	LegacyMidnight bool
}

// Classify uses the default classifier, which corrects for midnight rollover.
func Classify(scheduled, estimated string) Result {
	return Classifier{}.Classify(scheduled, estimated)
}

// Classify compares two HH:MM tokens, or interprets status tokens such as
// "On time" and "Cancelled" when either side is not a time.
func (c Classifier) Classify(scheduled, estimated string) Result {
	if !looksLikeTime(scheduled) || !looksLikeTime(estimated) {
		return classifyStatus(scheduled, estimated)
	}

	sch, errS := minutesOf(scheduled)
	est, errE := minutesOf(estimated)
	if errS != nil || errE != nil {
		return Result{IsProblem: true, Message: Delayed}
	}

	d := est - sch
	if !c.LegacyMidnight {
		d = normalize(d)
	}

	switch {
	case d == 0:
		return Result{IsProblem: false, Message: OnTimeExact}
	case d > 0:
		return Result{IsProblem: true, Message: fmt.Sprintf("%s late", plural(d))}
	default:
		return Result{IsProblem: true, Message: fmt.Sprintf("%s early", plural(-d))}
	}
}

func classifyStatus(scheduled, estimated string) Result {
	if strings.Contains(scheduled, "On") || strings.Contains(estimated, "On") {
		return Result{IsProblem: false, Message: OnTimeToken}
	}
	if strings.Contains(strings.ToUpper(scheduled), "CAN") || strings.Contains(strings.ToUpper(estimated), "CAN") {
		return Result{IsProblem: true, Message: Cancelled}
	}
	return Result{IsProblem: true, Message: Delayed}
}

// looksLikeTime only checks the 24-hour prefix; parsing may still fail.
func looksLikeTime(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '0', '1', '2':
		return true
	}
	return false
}

func minutesOf(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("not a HH:MM time: %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("bad hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("bad minute in %q: %w", s, err)
	}
	return h*60 + m, nil
}

// normalize maps a raw delta into (-720, 720].
func normalize(d int) int {
	d %= minutesInDay
	if d > minutesInDay/2 {
		d -= minutesInDay
	} else if d <= -minutesInDay/2 {
		d += minutesInDay
	}
	return d
}

func plural(n int) string {
	if n == 1 {
		return "1 min"
	}
	return fmt.Sprintf("%d mins", n)
}
