package ingest

import (
	"errors"
	"testing"

	"rsoreplay/internal/errs"
)

func TestDecode(t *testing.T) {
	entities, err := Decode([]byte(validPayload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(entities.Movables) != 2 || len(entities.Statics) != 1 {
		t.Fatalf("unexpected entities: %+v", entities)
	}
	alice := entities.Movables[0]
	if alice.Name != "alice" || !alice.Alive || alice.Circle.X != 10 || alice.Circle.Radius != 5 {
		t.Fatalf("unexpected first movable: %+v", alice)
	}
	if entities.Movables[1].Name != "bob" || entities.Movables[1].Alive {
		t.Fatalf("expected name alias to decode, got %+v", entities.Movables[1])
	}
	if entities.Statics[0].Index != 0 || entities.Statics[0].Circle.Y != 4 {
		t.Fatalf("unexpected static: %+v", entities.Statics[0])
	}
}

func TestDecodeEmptyLists(t *testing.T) {
	entities, err := Decode([]byte(`{"type":"gameState","data":{"players":[],"food":[]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if entities.Movables == nil || entities.Statics == nil {
		t.Fatalf("expected empty non-nil lists")
	}
}

func TestDecodeIgnoresOtherKinds(t *testing.T) {
	_, err := Decode([]byte(`{"type":"chat","data":{"text":"hi"}}`))
	if !errors.Is(err, ErrIgnored) {
		t.Fatalf("expected ErrIgnored, got %v", err)
	}
	if errors.Is(err, errs.ErrDecode) {
		t.Fatalf("ignored kinds are not decode errors")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{"type":`},
		{"trailing data", `{"type":"gameState","data":{"players":[],"food":[]}} {}`},
		{"missing type", `{"data":{"players":[],"food":[]}}`},
		{"missing data", `{"type":"gameState"}`},
		{"missing players", `{"type":"gameState","data":{"food":[]}}`},
		{"missing food", `{"type":"gameState","data":{"players":[]}}`},
		{"missing name", `{"type":"gameState","data":{"players":[{"alive":true,"circle":{"x":1,"y":1,"radius":1}}],"food":[]}}`},
		{"missing alive", `{"type":"gameState","data":{"players":[{"name":"a","circle":{"x":1,"y":1,"radius":1}}],"food":[]}}`},
		{"missing circle", `{"type":"gameState","data":{"players":[{"name":"a","alive":true}],"food":[]}}`},
		{"missing radius", `{"type":"gameState","data":{"players":[{"name":"a","alive":true,"circle":{"x":1,"y":1}}],"food":[]}}`},
		{"wrong field type", `{"type":"gameState","data":{"players":[{"name":"a","alive":"yes","circle":{"x":1,"y":1,"radius":1}}],"food":[]}}`},
		{"food missing index", `{"type":"gameState","data":{"players":[],"food":[{"circle":{"x":1,"y":1,"radius":1}}]}}`},
		{"duplicate player", `{"type":"gameState","data":{"players":[{"name":"a","alive":true,"circle":{"x":1,"y":1,"radius":1}},{"playerName":"a","alive":true,"circle":{"x":2,"y":2,"radius":1}}],"food":[]}}`},
		{"duplicate food", `{"type":"gameState","data":{"players":[],"food":[{"index":1,"circle":{"x":1,"y":1,"radius":1}},{"index":1,"circle":{"x":2,"y":2,"radius":1}}]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.payload))
			if !errors.Is(err, errs.ErrDecode) {
				t.Fatalf("expected decode error, got %v", err)
			}
		})
	}
}

func TestSessionFromTopic(t *testing.T) {
	cases := map[string]string{
		"game_state/g1":        "g1",
		"arena/game_state/abc": "abc",
		"plain":                "plain",
		"game_state/":          "",
	}
	for topic, want := range cases {
		if got := SessionFromTopic(topic); got != want {
			t.Fatalf("SessionFromTopic(%q) = %q, want %q", topic, got, want)
		}
	}
}
