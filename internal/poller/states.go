package poller

import (
	"fmt"
	"strconv"
	"strings"

	"departure-board-backend/internal/board"
	"departure-board-backend/internal/delay"
	"departure-board-backend/internal/store"
)

// Device status values.
const (
	StatusOnTime   = "Running on time"
	StatusIssues   = "Delays or issues"
	StatusAwaiting = "Awaiting update"
	StatusInactive = "Not active"
)

// State keys written for every route.
const (
	KeyStationLong     = "stationLong"
	KeyTimeGenerated   = "timeGenerated"
	KeyStationIssues   = "stationIssues"
	KeyStationMessages = "stationMessages"
	KeyDeviceStatus    = "deviceStatus"
	KeyLastRenderError = "lastRenderError"
	KeyDigest          = store.DigestKey
)

// MaxTrains is how many per-service state groups a route carries.
const MaxTrains = 10

// NoReason is reported for a late or cancelled service without a reason.
const NoReason = "No reason provided"

var trainFields = []string{"Dest", "Op", "Sch", "Est", "Platform", "Delay", "Issue", "Reason", "Calling"}

// TrainKey is the state key for field of the nth service, counted from 1.
func TrainKey(n int, field string) string {
	return fmt.Sprintf("train%d%s", n, field)
}

// clearedStates blanks every per-service state so a shorter board does
// not leave stale trains behind.
func clearedStates() map[string]string {
	states := make(map[string]string, MaxTrains*len(trainFields)+4)
	for n := 1; n <= MaxTrains; n++ {
		for _, f := range trainFields {
			states[TrainKey(n, f)] = ""
		}
	}
	states[KeyStationIssues] = "false"
	states[KeyStationMessages] = ""
	return states
}

// setTrain fills the states of the nth service.
func setTrain(states map[string]string, n int, svc board.ServiceRecord, res delay.Result, reason, calling string) {
	if n < 1 || n > MaxTrains {
		return
	}
	states[TrainKey(n, "Dest")] = svc.Destination
	states[TrainKey(n, "Op")] = svc.OperatorName
	states[TrainKey(n, "Sch")] = svc.Scheduled
	states[TrainKey(n, "Est")] = svc.Estimated
	states[TrainKey(n, "Platform")] = svc.Platform
	states[TrainKey(n, "Delay")] = res.Message
	states[TrainKey(n, "Issue")] = strconv.FormatBool(res.IsProblem)
	states[TrainKey(n, "Calling")] = calling
	if res.IsProblem {
		if reason == "" {
			reason = NoReason
		}
		states[TrainKey(n, "Reason")] = reason
	}
}

// stationMessages is the notice text without its markers.
func stationMessages(raw string) string {
	formatted := board.FormatNotices(raw)
	formatted = strings.ReplaceAll(formatted, "+", "")
	return strings.TrimSpace(strings.Join(strings.Fields(formatted), " "))
}
