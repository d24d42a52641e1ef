package liteorm

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// JSONField stores V in a JSON column as its JSON text.
// A NULL column scans into the zero value of T.
type JSONField[T any] struct {
	V T
}

func (j JSONField[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONField[T]) Scan(src any) error {
	var zero T
	j.V = zero
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(v), &j.V)
	case []byte:
		return json.Unmarshal(v, &j.V)
	}
	return fmt.Errorf("liteorm: cannot scan %T into JSONField", src)
}
