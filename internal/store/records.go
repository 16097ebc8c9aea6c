package store

import (
	"github.com/roach88/patchwork/internal/ir"
)

// EventKind identifies a journaled host event.
type EventKind string

const (
	EventLoad     EventKind = "load"
	EventUpdate   EventKind = "update"
	EventChanged  EventKind = "changed"
	EventTeardown EventKind = "teardown"
	EventLoaded   EventKind = "loaded"
)

// Run is one engine session.
type Run struct {
	ID            string
	SceneHash     string
	EngineVersion string
	IRVersion     string
	Seq           int64
}

// Event is a host input as the engine applied it.
type Event struct {
	RunID      string
	Seq        int64
	Kind       EventKind
	Component  string
	Attributes ir.Attributes
	Names      []string
}

// Resolution is one successful patch or rebuild.
type Resolution struct {
	RunID       string
	Seq         int64
	Component   string
	Kind        string
	Decision    string
	Attributes  []string
	Fingerprint string
	Builds      int
	Patches     int
}

// Subscription is a dependency edge. ReleasedSeq is zero while live.
type Subscription struct {
	ID            string
	RunID         string
	Owner         string
	Slot          string
	Target        string
	SubscribedSeq int64
	ReleasedSeq   int64
}

// Live reports whether the edge has not been released.
func (s Subscription) Live() bool {
	return s.ReleasedSeq == 0
}

// Failure is a build error surfaced to the host.
type Failure struct {
	RunID     string
	Seq       int64
	Component string
	Kind      string
	Error     string
}

// TimelineEntry is one row of the merged journal view.
type TimelineEntry struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Component string `json:"component"`
	Detail    string `json:"detail"`
}
