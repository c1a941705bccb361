package types

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes wire-level eviction events. Implementations must
// be lossless for every field of CacheEvictionEvent.
type Codec interface {
	// Name returns the codec's format name ("json" or "msgpack").
	Name() string

	// Encode serializes an event for the wire.
	Encode(event CacheEvictionEvent) ([]byte, error)

	// Decode deserializes an event. A payload with a missing or empty
	// eventId yields an event with a freshly minted id rather than an error.
	Decode(data []byte) (CacheEvictionEvent, error)
}

// ErrUnsupportedFormat is returned for serialization formats this module
// does not implement.
var ErrUnsupportedFormat = errors.New("unsupported serialization format")

// CodecFor returns the codec for the given format name.
func CodecFor(format string) (Codec, error) {
	switch format {
	case "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// JSONCodec implements Codec using encoding/json.
type JSONCodec struct{}

// Name returns "json".
func (JSONCodec) Name() string { return "json" }

// Encode serializes an event to JSON.
func (JSONCodec) Encode(event CacheEvictionEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Decode deserializes an event from JSON.
func (JSONCodec) Decode(data []byte) (CacheEvictionEvent, error) {
	var event CacheEvictionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return CacheEvictionEvent{}, err
	}
	return ensureEventID(event), nil
}

// MsgpackCodec implements Codec using msgpack.
type MsgpackCodec struct{}

// Name returns "msgpack".
func (MsgpackCodec) Name() string { return "msgpack" }

// Encode serializes an event to msgpack.
func (MsgpackCodec) Encode(event CacheEvictionEvent) ([]byte, error) {
	return msgpack.Marshal(event)
}

// Decode deserializes an event from msgpack.
func (MsgpackCodec) Decode(data []byte) (CacheEvictionEvent, error) {
	var event CacheEvictionEvent
	if err := msgpack.Unmarshal(data, &event); err != nil {
		return CacheEvictionEvent{}, err
	}
	return ensureEventID(event), nil
}

// ensureEventID mints a fresh id for events that arrive without one, so a
// peer running an older sender never breaks deduplication downstream.
func ensureEventID(event CacheEvictionEvent) CacheEvictionEvent {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	return event
}
