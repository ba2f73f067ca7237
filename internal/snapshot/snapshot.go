package snapshot

import (
	"fmt"
	"time"
)

type Circle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Movable is a player-like entity matched across snapshots by Name.
type Movable struct {
	Name   string `json:"name"`
	Alive  bool   `json:"alive"`
	Circle Circle `json:"circle"`
}

// Static is a food-like entity. Statics are never interpolated.
type Static struct {
	Index  int    `json:"index"`
	Circle Circle `json:"circle"`
}

type Entities struct {
	Movables []Movable `json:"movables"`
	Statics  []Static  `json:"statics"`
}

// Snapshot is one logged record of a session. Stored snapshots are never
// mutated; interpolated frames reuse the shape but are never persisted.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Entities  Entities  `json:"entities"`
}

// Validate checks that identities are unique within the snapshot.
func (s Snapshot) Validate() error {
	names := make(map[string]struct{}, len(s.Entities.Movables))
	for i, m := range s.Entities.Movables {
		if m.Name == "" {
			return fmt.Errorf("movable %d has empty name", i)
		}
		if _, exists := names[m.Name]; exists {
			return fmt.Errorf("duplicate movable %q", m.Name)
		}
		names[m.Name] = struct{}{}
		if m.Circle.Radius < 0 {
			return fmt.Errorf("movable %q has negative radius", m.Name)
		}
	}

	indexes := make(map[int]struct{}, len(s.Entities.Statics))
	for _, st := range s.Entities.Statics {
		if _, exists := indexes[st.Index]; exists {
			return fmt.Errorf("duplicate static index %d", st.Index)
		}
		indexes[st.Index] = struct{}{}
		if st.Circle.Radius < 0 {
			return fmt.Errorf("static %d has negative radius", st.Index)
		}
	}
	return nil
}

// TimeRange bounds a query inclusively. Nil ends are open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

func (r TimeRange) Contains(ts time.Time) bool {
	if r.From != nil && ts.Before(*r.From) {
		return false
	}
	if r.To != nil && ts.After(*r.To) {
		return false
	}
	return true
}

func (r TimeRange) Validate() error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return fmt.Errorf("from %s is after to %s", r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
	}
	return nil
}
