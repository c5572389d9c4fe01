package models

import "time"

// ReleaseReason records which trigger drained the buffer.
type ReleaseReason string

const (
	ReleaseTimer    ReleaseReason = "timer"
	ReleaseCapacity ReleaseReason = "capacity"
	ReleaseDemand   ReleaseReason = "demand"
)

// Batch is the ordered set of events released together.
type Batch struct {
	ID         string
	Reason     ReleaseReason
	Question   string // set for on-demand releases only
	ReleasedAt time.Time
	Events     []NetworkEvent
}

// Len returns the number of events in the batch.
func (b Batch) Len() int {
	return len(b.Events)
}

// Empty reports whether the batch carries no events.
func (b Batch) Empty() bool {
	return len(b.Events) == 0
}

// Analysis is one backend answer for a released batch.
type Analysis struct {
	BatchID    string
	Reason     ReleaseReason
	Question   string
	EventCount int
	Response   string
	Err        string
	At         time.Time
}

// Failed reports whether the backend call for this analysis failed.
func (a Analysis) Failed() bool {
	return a.Err != ""
}
