package fleet

import "encoding/json"

// Optional is a JSON field that tells an absent key apart from an explicit
// null. Set is true whenever the key was present; Valid is false for null.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Some returns a present, non-null value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

// Null returns a present null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsZero reports an absent field, so `omitzero` drops it when encoding.
func (o Optional[T]) IsZero() bool {
	return !o.Set
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	var zero T
	o.Set = true
	o.Valid = false
	o.Value = zero
	if string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
