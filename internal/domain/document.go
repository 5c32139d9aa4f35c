package domain

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Document is a free-form JSON object as produced by the AI collaborator.
// It is persisted as JSON text so nested arrays and objects come back as
// plain []any / map[string]any instead of the driver's primitive.A / primitive.D.
type Document map[string]any

// MarshalBSONValue implements bson.ValueMarshaler.
func (d Document) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if d == nil {
		return bsontype.Null, nil, nil
	}
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return 0, nil, fmt.Errorf("encode document: %w", err)
	}
	return bson.MarshalValue(string(b))
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (d *Document) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null || t == bsontype.Undefined {
		*d = nil
		return nil
	}
	var text string
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&text); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	*d = m
	return nil
}

// Clone returns a deep copy made through a JSON round trip.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// Len reports the number of top-level keys.
func (d Document) Len() int { return len(d) }
