package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TimeFormat is the fixed-width UTC layout used for TEXT timestamps, so that
// lexical order equals chronological order.
const TimeFormat = "2006-01-02 15:04:05.000000"

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// JSONStringArray handles scanning and storing []string as JSON text.
type JSONStringArray []string

func (j *JSONStringArray) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONStringArray", value)
	}
	if len(data) == 0 {
		*j = nil
		return nil
	}
	return json.Unmarshal(data, j)
}

func (j JSONStringArray) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// NullTime handles scanning SQLite TEXT datetime columns.
type NullTime struct {
	Time  time.Time
	Valid bool
}

func (t *NullTime) Scan(value any) error {
	if value == nil {
		t.Valid = false
		return nil
	}
	var str string
	switch v := value.(type) {
	case []byte:
		str = string(v)
	case string:
		str = v
	case time.Time:
		t.Time, t.Valid = v, true
		return nil
	default:
		return fmt.Errorf("cannot scan %T into NullTime", value)
	}
	if str == "" {
		t.Valid = false
		return nil
	}
	for _, layout := range []string{TimeFormat, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if parsed, err := time.ParseInLocation(layout, str, time.UTC); err == nil {
			t.Time = parsed
			t.Valid = true
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", str)
}
