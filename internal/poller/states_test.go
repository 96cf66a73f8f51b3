package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"departure-board-backend/config"
	"departure-board-backend/internal/board"
	"departure-board-backend/internal/delay"
	"departure-board-backend/internal/dispatch"
)

func TestClearedStates(t *testing.T) {
	states := clearedStates()

	assert.Len(t, states, MaxTrains*len(trainFields)+2)
	assert.Contains(t, states, "train10Calling")
	assert.Equal(t, "", states["train1Dest"])
	assert.Equal(t, "false", states[KeyStationIssues])
}

func TestSetTrain(t *testing.T) {
	svc := board.ServiceRecord{Destination: "Reading", Scheduled: "10:00", Estimated: "Cancelled", OperatorName: "Great Western Railway", Platform: "4"}

	testCases := []struct {
		name   string
		n      int
		res    delay.Result
		reason string
		want   map[string]string
	}{
		{
			name:   "problem with reason",
			n:      1,
			res:    delay.Result{IsProblem: true, Message: "Cancelled"},
			reason: "This train has been cancelled because of a fault",
			want:   map[string]string{"train1Issue": "true", "train1Delay": "Cancelled", "train1Reason": "This train has been cancelled because of a fault"},
		},
		{
			name: "problem without reason",
			n:    3,
			res:  delay.Result{IsProblem: true, Message: "Cancelled"},
			want: map[string]string{"train3Issue": "true", "train3Reason": NoReason},
		},
		{
			name:   "on time keeps reason empty",
			n:      2,
			res:    delay.Result{Message: "On time"},
			reason: "ignored",
			want:   map[string]string{"train2Issue": "false", "train2Reason": ""},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			states := clearedStates()
			setTrain(states, tc.n, svc, tc.res, tc.reason, "Didcot Parkway(10:30) ")
			for k, v := range tc.want {
				assert.Equal(t, v, states[k], k)
			}
			assert.Equal(t, "Reading", states[TrainKey(tc.n, "Dest")])
			assert.Equal(t, "4", states[TrainKey(tc.n, "Platform")])
			assert.Equal(t, "Didcot Parkway(10:30) ", states[TrainKey(tc.n, "Calling")])
		})
	}

	states := map[string]string{}
	setTrain(states, MaxTrains+1, svc, delay.Result{}, "", "")
	assert.Empty(t, states)
}

func TestStationMessages(t *testing.T) {
	assert.Equal(t, "", stationMessages(""))
	assert.Equal(t, "Lifts out of order at Woking", stationMessages("<p>Lifts out of order at Woking</p>"))
}

func TestPathsFor(t *testing.T) {
	p := PathsFor("/var/boards", "wok")
	assert.Equal(t, "/var/boards/wok_timetable.txt", p.Text)
	assert.Equal(t, "/var/boards/wok_params.txt", p.Params)
	assert.Equal(t, "/var/boards/wok.png", p.Image)
}

func TestEnabledStyles(t *testing.T) {
	testCases := []struct {
		name     string
		styles   []string
		expected []dispatch.Style
	}{
		{"none", nil, nil},
		{"classic", []string{"classic"}, []dispatch.Style{dispatch.Classic}},
		{"both in board order", []string{"Modern", "classic"}, []dispatch.Style{dispatch.Classic, dispatch.Modern}},
		{"duplicates collapse", []string{"modern", "modern"}, []dispatch.Style{dispatch.Modern}},
		{"unknown ignored", []string{"retro"}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, enabledStyles(config.ImagesConfig{Styles: tc.styles}))
		})
	}
}
