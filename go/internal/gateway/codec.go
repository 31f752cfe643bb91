package gateway

import (
	"encoding/json"
	"fmt"
)

// jsonCodec encodes RPC messages as plain JSON structs. It registers under
// the "json" name so application/json and application/connect+json requests
// use it in place of the protobuf JSON codec.
type jsonCodec struct{}

// Codec is the codec shared by the handler and clients.
var Codec jsonCodec

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}
