package transport

import "fmt"

// rawCodec moves pre-encoded byte slices through gRPC unchanged. Arguments
// are already serialized interface-description payloads, so there is nothing
// for protobuf to do.
type rawCodec struct{}

func (rawCodec) Name() string { return "conclave-raw" }

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("raw codec: cannot marshal %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}
