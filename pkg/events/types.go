package events

import "encoding/json"

// Event name constants
const (
	TrackerExhausted = "tracker.exhausted"
	TrackerRemoved   = "tracker.removed"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// TrackerExhaustedEvent is published the first time a tracked tube reports
// that the bottom is reached.
type TrackerExhaustedEvent struct {
	ID                string  `json:"id"`
	TubeType          string  `json:"tubeType"`
	Steps             int     `json:"steps"`
	HeightMM          float64 `json:"heightMM"`
	PipettingHeightMM float64 `json:"pipettingHeightMM"`
	Ts                int64   `json:"ts"`
}

// TrackerRemovedEvent is published when a session is deleted or swept.
type TrackerRemovedEvent struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Ts     int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.TrackerExhaustedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.ID, payload.Steps)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
