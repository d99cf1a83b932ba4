package riverconf

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Serde encodes handler payloads and results.
// Implementations must be safe for concurrent use.
type Serde interface {
	// ContentType reports the MIME type of encoded data, as advertised
	// on the handler descriptor.
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerde encodes payloads as JSON. It is the default serde for both
// handler input and output.
type JSONSerde struct{}

func (JSONSerde) ContentType() string { return "application/json" }

func (JSONSerde) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	return data, nil
}

func (JSONSerde) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}
	return nil
}

// RawSerde passes byte slices through untouched. Use it for handlers that
// manage their own encoding.
type RawSerde struct{}

func (RawSerde) ContentType() string { return "application/octet-stream" }

func (RawSerde) Marshal(v any) ([]byte, error) {
	switch data := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return data, nil
	case json.RawMessage:
		return data, nil
	case string:
		return []byte(data), nil
	default:
		return nil, fmt.Errorf("%w: raw serde expects []byte, got %T", ErrInvalidPayload, v)
	}
}

func (RawSerde) Unmarshal(data []byte, v any) error {
	switch target := v.(type) {
	case *[]byte:
		*target = data
	case *json.RawMessage:
		*target = data
	case *string:
		*target = string(data)
	default:
		return fmt.Errorf("%w: raw serde expects *[]byte, got %T", ErrInvalidPayload, v)
	}
	return nil
}
