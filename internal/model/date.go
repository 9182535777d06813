package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Date is a calendar date on the wire. It decodes "2024-05-01" as well as a full RFC 3339 timestamp.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "date must be a string")
	}
	if s == "" {
		*d = Date{}
		return nil
	}

	for _, layout := range []string{time.DateOnly, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = Date{Time: t}
			return nil
		}
	}
	return errors.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}
