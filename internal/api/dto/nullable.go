package dto

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var jsonNull = []byte("null")

// Nullable distinguishes an absent JSON field from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON is only invoked for present keys, so Set is always true.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Optional converts n into the domain patch representation.
func (n Nullable[T]) Optional() domain.Optional[T] {
	return domain.Optional[T]{Set: n.Set, Value: n.Value}
}

// TagList accepts either a comma separated string or an array of strings.
type TagList struct {
	Set    bool
	Null   bool
	Values []string
}

var errTagShape = errors.New("tags must be a string or an array of strings")

func (t *TagList) UnmarshalJSON(data []byte) error {
	t.Set = true
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		t.Null = true
		t.Values = nil
		return nil
	}
	var csv string
	if err := json.Unmarshal(data, &csv); err == nil {
		t.Values = domain.SplitTags(csv)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errTagShape
	}
	t.Values = list
	return nil
}
