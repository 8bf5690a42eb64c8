package tracker

import (
	"sync"
	"time"
)

// Record is one tracked step.
type Record struct {
	Index         int       `json:"index"`
	Time          time.Time `json:"time"`
	DeltaVolumeUL float64   `json:"deltaVolumeUL"`
	Result
}

// History records the last N steps of a tracker.
type History struct {
	MaxRecordCount int
	records        []Record
	mu             *sync.Mutex
}

// NewHistory returns a History keeping at most maxRecordCount records.
// A non-positive count keeps nothing.
func NewHistory(maxRecordCount int) *History {
	return &History{
		MaxRecordCount: maxRecordCount,
		records:        make([]Record, 0),
		mu:             &sync.Mutex{},
	}
}

// AddRecord appends r, dropping the oldest record when full.
func (h *History) AddRecord(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.MaxRecordCount <= 0 {
		return
	}

	// Strip monotonic clock reading.
	r.Time = r.Time.Round(0)

	if len(h.records) >= h.MaxRecordCount {
		h.records = h.records[1:]
	}
	h.records = append(h.records, r)
}

// ClearRecords clears all records.
func (h *History) ClearRecords() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = make([]Record, 0)
}

// GetRecords returns a copy of the records, oldest first.
func (h *History) GetRecords() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	ret := make([]Record, len(h.records))
	copy(ret, h.records)
	return ret
}

// Last returns the most recent record.
func (h *History) Last() (Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) == 0 {
		return Record{}, false
	}
	return h.records[len(h.records)-1], true
}

// GetRecordsIn returns the records taken within the last duration, newest first.
func (h *History) GetRecordsIn(last time.Duration) []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	var records []Record
	for i := len(h.records) - 1; i >= 0; i-- {
		record := h.records[i]
		if time.Since(record.Time) > last {
			break
		}
		records = append(records, record)
	}

	return records
}
