package messaging

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct projects the envelope onto a protobuf Struct using its JSON wire
// shape. Payload values are normalized through JSON first, so any
// JSON-serializable payload can be projected.
func (e *Envelope) ToStruct() (*structpb.Struct, error) {
	return ToStruct(e)
}

// FromStruct decodes an envelope previously projected with ToStruct.
func FromStruct(s *structpb.Struct) (*Envelope, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode struct: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &env, nil
}

// ToPayload converts any JSON-serializable object value into an envelope
// payload map.
func ToPayload(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("value is not a JSON object: %w", err)
	}
	return fields, nil
}

// ToStruct converts any JSON-serializable object value into a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	fields, err := ToPayload(v)
	if err != nil {
		return nil, err
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return s, nil
}
