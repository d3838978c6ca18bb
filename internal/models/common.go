package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSlice stores a set of strings as a JSON array column.
type StringSlice []string

// Scan implements the sql.Scanner interface.
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("StringSlice.Scan: unexpected type %T", value)
		}
		bytes = []byte(str)
	}
	if len(bytes) == 0 {
		*s = []string{}
		return nil
	}
	if err := json.Unmarshal(bytes, s); err != nil {
		return fmt.Errorf("StringSlice.Scan: invalid JSON: %w", err)
	}
	return nil
}

// Value implements the driver.Valuer interface.
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Contains reports whether label is present in the set.
func (s StringSlice) Contains(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// StringMap stores a string-to-string map (e.g. field name translations) as a JSON object column.
type StringMap map[string]string

// Scan implements the sql.Scanner interface.
func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = StringMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("StringMap.Scan: unexpected type %T", value)
		}
		bytes = []byte(str)
	}
	if len(bytes) == 0 {
		*m = StringMap{}
		return nil
	}
	if err := json.Unmarshal(bytes, m); err != nil {
		return fmt.Errorf("StringMap.Scan: invalid JSON: %w", err)
	}
	return nil
}

// Value implements the driver.Valuer interface.
func (m StringMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// JSONPayload stores an arbitrary structured payload (outbox event bodies) as a JSON column.
type JSONPayload map[string]interface{}

// Scan implements the sql.Scanner interface.
func (p *JSONPayload) Scan(value interface{}) error {
	if value == nil {
		*p = JSONPayload{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("JSONPayload.Scan: unexpected type %T", value)
		}
		bytes = []byte(str)
	}
	if len(bytes) == 0 {
		*p = JSONPayload{}
		return nil
	}
	if err := json.Unmarshal(bytes, p); err != nil {
		return fmt.Errorf("JSONPayload.Scan: invalid JSON: %w", err)
	}
	return nil
}

// Value implements the driver.Valuer interface.
func (p JSONPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	bytes, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}
