package store

import (
	"encoding/json"
	"fmt"
	"time"

	"rsoreplay/internal/errs"
	"rsoreplay/internal/snapshot"
)

// TimestampLayout is fixed-width UTC ISO-8601 so that text columns sort and
// compare chronologically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampLayout)
}

func ParseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(TimestampLayout, value)
	if err != nil {
		ts, err = time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}, errs.Decode("timestamp %q: %v", value, err)
		}
	}
	return ts.UTC(), nil
}

func EncodeEntities(e snapshot.Entities) ([]byte, error) {
	if e.Movables == nil {
		e.Movables = []snapshot.Movable{}
	}
	if e.Statics == nil {
		e.Statics = []snapshot.Static{}
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling entities: %w", err)
	}
	return payload, nil
}

func DecodeEntities(data []byte) (snapshot.Entities, error) {
	var e snapshot.Entities
	if len(data) == 0 {
		return e, errs.Decode("empty entities record")
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return snapshot.Entities{}, errs.Decode("entities record: %v", err)
	}
	return e, nil
}
