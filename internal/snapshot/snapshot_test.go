package snapshot

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Run("valid snapshot", func(t *testing.T) {
		s := Snapshot{Entities: Entities{
			Movables: []Movable{{Name: "a", Alive: true}, {Name: "b"}},
			Statics:  []Static{{Index: 0}, {Index: 1}},
		}}
		if err := s.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("duplicate movable", func(t *testing.T) {
		s := Snapshot{Entities: Entities{Movables: []Movable{{Name: "a"}, {Name: "a"}}}}
		if err := s.Validate(); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("empty movable name", func(t *testing.T) {
		s := Snapshot{Entities: Entities{Movables: []Movable{{Name: ""}}}}
		if err := s.Validate(); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("duplicate static index", func(t *testing.T) {
		s := Snapshot{Entities: Entities{Statics: []Static{{Index: 3}, {Index: 3}}}}
		if err := s.Validate(); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("negative radius", func(t *testing.T) {
		s := Snapshot{Entities: Entities{Movables: []Movable{{Name: "a", Circle: Circle{Radius: -1}}}}}
		if err := s.Validate(); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestTimeRange(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	from := base
	to := base.Add(time.Second)
	r := TimeRange{From: &from, To: &to}

	if !r.Contains(base) || !r.Contains(to) {
		t.Fatalf("expected bounds to be inclusive")
	}
	if r.Contains(base.Add(-time.Nanosecond)) || r.Contains(to.Add(time.Nanosecond)) {
		t.Fatalf("expected values outside range to be excluded")
	}
	if !(TimeRange{}).Contains(base) {
		t.Fatalf("expected open range to contain everything")
	}

	inverted := TimeRange{From: &to, To: &from}
	if err := inverted.Validate(); err == nil {
		t.Fatalf("expected inverted range error")
	}
}
