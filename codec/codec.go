// Package codec defines the envelope serialization contract. The format is
// part of the producer/consumer wire contract: both ends must agree.
package codec

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes envelopes for the broker payload body. Any
// self-describing format works as long as both ends use the same one.
type Codec interface {
	// Marshal serializes a value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a value.
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier (e.g., "json", "msgpack").
	Name() string
}

// Codec name constants for configuration.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// Get returns a codec by name. Defaults to JSON.
func Get(name string) Codec {
	switch name {
	case NameMsgpack:
		return &Msgpack{}
	default:
		return &JSON{}
	}
}

// JSON encodes envelopes as JSON, the format of record.
type JSON struct{}

func (c *JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (c *JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (c *JSON) Name() string { return NameJSON }

// Msgpack encodes envelopes as MessagePack for deployments that prefer a
// compact binary body.
type Msgpack struct{}

func (c *Msgpack) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (c *Msgpack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

func (c *Msgpack) Name() string { return NameMsgpack }
