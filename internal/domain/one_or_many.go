package domain

import (
	"bytes"
	"encoding/json"
)

// OneOrMany holds an embedded relation that a REST join may render as
// null, a single object or an array depending on the relation's
// cardinality.
type OneOrMany[T any] struct {
	items []T
}

func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		o.items = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		o.items = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	o.items = []T{one}
	return nil
}

// One returns the first element, or nil when the relation was empty.
func (o OneOrMany[T]) One() *T {
	if len(o.items) == 0 {
		return nil
	}
	v := o.items[0]
	return &v
}

func (o OneOrMany[T]) All() []T {
	return o.items
}

func Many[T any](items ...T) OneOrMany[T] {
	return OneOrMany[T]{items: items}
}
