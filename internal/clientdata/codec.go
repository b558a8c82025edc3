package clientdata

import (
	"fmt"

	"github.com/aristath/screener/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// encodePayload serializes a raw payload for storage
func encodePayload(payload *domain.RawPayload) ([]byte, error) {
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// decodePayload deserializes a stored payload
func decodePayload(data []byte) (*domain.RawPayload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	var payload domain.RawPayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &payload, nil
}
