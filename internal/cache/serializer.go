package cache

import "encoding/json"

// Serializer defines the marshaling boundary for cached payloads. Tier
// records are opaque bytes; the serializer is applied once on Store and once
// per hit.
type Serializer interface {
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// JSONSerializer implements Serializer using encoding/json.
type JSONSerializer struct{}

var _ Serializer = JSONSerializer{}

func (JSONSerializer) Marshal(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}
