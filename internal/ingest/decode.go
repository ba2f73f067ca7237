package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"rsoreplay/internal/errs"
	"rsoreplay/internal/snapshot"
)

const kindGameState = "gameState"

// ErrIgnored is returned for well-formed messages of a kind other than
// gameState. Callers skip them without logging a failure.
var ErrIgnored = errors.New("ignored message kind")

type wireMessage struct {
	Type *string   `json:"type"`
	Data *wireData `json:"data"`
}

type wireData struct {
	Players *[]wirePlayer `json:"players"`
	Food    *[]wireFood   `json:"food"`
}

type wirePlayer struct {
	PlayerName *string     `json:"playerName"`
	Name       *string     `json:"name"`
	Alive      *bool       `json:"alive"`
	Circle     *wireCircle `json:"circle"`
}

type wireFood struct {
	Index  *int        `json:"index"`
	Circle *wireCircle `json:"circle"`
}

type wireCircle struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Radius *float64 `json:"radius"`
}

// Decode parses a bus payload into the entity lists of a snapshot. Every
// field of the wire schema is required; a player may name itself with either
// playerName or name.
func Decode(payload []byte) (snapshot.Entities, error) {
	var msg wireMessage
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&msg); err != nil {
		return snapshot.Entities{}, errs.Decode("parse payload: %v", err)
	}
	if dec.More() {
		return snapshot.Entities{}, errs.Decode("trailing data after payload")
	}
	if msg.Type == nil {
		return snapshot.Entities{}, errs.Decode("missing type")
	}
	if *msg.Type != kindGameState {
		return snapshot.Entities{}, fmt.Errorf("%w: %q", ErrIgnored, *msg.Type)
	}
	if msg.Data == nil {
		return snapshot.Entities{}, errs.Decode("missing data")
	}
	if msg.Data.Players == nil {
		return snapshot.Entities{}, errs.Decode("missing data.players")
	}
	if msg.Data.Food == nil {
		return snapshot.Entities{}, errs.Decode("missing data.food")
	}

	entities := snapshot.Entities{
		Movables: make([]snapshot.Movable, 0, len(*msg.Data.Players)),
		Statics:  make([]snapshot.Static, 0, len(*msg.Data.Food)),
	}
	for i, p := range *msg.Data.Players {
		name := p.PlayerName
		if name == nil {
			name = p.Name
		}
		if name == nil {
			return snapshot.Entities{}, errs.Decode("player %d: missing playerName", i)
		}
		if p.Alive == nil {
			return snapshot.Entities{}, errs.Decode("player %d: missing alive", i)
		}
		circle, err := p.Circle.decode()
		if err != nil {
			return snapshot.Entities{}, errs.Decode("player %d: %v", i, err)
		}
		entities.Movables = append(entities.Movables, snapshot.Movable{Name: *name, Alive: *p.Alive, Circle: circle})
	}
	for i, f := range *msg.Data.Food {
		if f.Index == nil {
			return snapshot.Entities{}, errs.Decode("food %d: missing index", i)
		}
		circle, err := f.Circle.decode()
		if err != nil {
			return snapshot.Entities{}, errs.Decode("food %d: %v", i, err)
		}
		entities.Statics = append(entities.Statics, snapshot.Static{Index: *f.Index, Circle: circle})
	}

	if err := (snapshot.Snapshot{Entities: entities}).Validate(); err != nil {
		return snapshot.Entities{}, errs.Decode("%v", err)
	}
	return entities, nil
}

func (c *wireCircle) decode() (snapshot.Circle, error) {
	if c == nil {
		return snapshot.Circle{}, fmt.Errorf("missing circle")
	}
	if c.X == nil || c.Y == nil || c.Radius == nil {
		return snapshot.Circle{}, fmt.Errorf("circle requires x, y and radius")
	}
	return snapshot.Circle{X: *c.X, Y: *c.Y, Radius: *c.Radius}, nil
}

// SessionFromTopic returns the last level of an MQTT topic.
func SessionFromTopic(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// Digest fingerprints a payload for duplicate suppression.
func Digest(payload []byte) [32]byte {
	return blake3.Sum256(payload)
}
