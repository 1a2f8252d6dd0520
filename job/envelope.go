package job

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/courierhq/courier"
)

// DefaultMaxAttempts applies when a retry policy is enabled without an
// explicit cap.
const DefaultMaxAttempts = 25

// Envelope is the serializable unit of work. It is immutable once
// published; only the consumer side mutates Attempt on redelivery.
// Field names are producer/consumer contract.
type Envelope struct {
	ID         string      `json:"id" msgpack:"id"`
	Handler    string      `json:"class" msgpack:"class"`
	Queue      string      `json:"queue" msgpack:"queue"`
	Retry      RetryPolicy `json:"retry" msgpack:"retry"`
	Args       ArgList     `json:"args" msgpack:"args"`
	Attempt    int         `json:"attempt" msgpack:"attempt"`
	EnqueuedAt time.Time   `json:"enqueued_at" msgpack:"enqueued_at"`
}

// Validate checks the envelope invariants. The handler name is never
// empty — it uniquely identifies a registry entry on the consuming side.
func (e *Envelope) Validate() error {
	if e.Handler == "" {
		return courier.ErrEmptyHandlerName
	}
	if e.Attempt < 0 {
		return fmt.Errorf("%w: negative attempt %d", courier.ErrInvalidEnvelope, e.Attempt)
	}
	return nil
}

// RetryPolicy is the producer-declared redelivery policy. On the wire the
// retry field is either a bool or a max-attempts int, mirroring the
// queueing conventions both sides already speak.
type RetryPolicy struct {
	Enabled     bool
	MaxAttempts int
}

// EffectiveMax returns the attempt budget this policy allows: zero when
// disabled, MaxAttempts when capped, DefaultMaxAttempts otherwise.
func (p RetryPolicy) EffectiveMax() int {
	if !p.Enabled {
		return 0
	}
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return DefaultMaxAttempts
}

// MarshalJSON encodes the policy as false, true, or a max-attempts int.
func (p RetryPolicy) MarshalJSON() ([]byte, error) {
	return []byte(p.wireString()), nil
}

// UnmarshalJSON accepts false, true, or a non-negative int.
func (p *RetryPolicy) UnmarshalJSON(data []byte) error {
	s := string(data)
	switch s {
	case "false":
		*p = RetryPolicy{}
		return nil
	case "true":
		*p = RetryPolicy{Enabled: true}
		return nil
	}
	// Atoi rejects trailing garbage, so "1.5" fails instead of
	// truncating to 1.
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("%w: retry field %s", courier.ErrInvalidEnvelope, s)
	}
	*p = RetryPolicy{Enabled: n > 0, MaxAttempts: n}
	return nil
}

// EncodeMsgpack keeps the bool-or-int wire shape under the msgpack codec.
func (p RetryPolicy) EncodeMsgpack(enc *msgpack.Encoder) error {
	if !p.Enabled {
		return enc.EncodeBool(false)
	}
	if p.MaxAttempts > 0 {
		return enc.EncodeInt(int64(p.MaxAttempts))
	}
	return enc.EncodeBool(true)
}

// DecodeMsgpack accepts a bool or an int retry field.
func (p *RetryPolicy) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*p = RetryPolicy{Enabled: t}
	case int8:
		*p = RetryPolicy{Enabled: t > 0, MaxAttempts: int(t)}
	case int16:
		*p = RetryPolicy{Enabled: t > 0, MaxAttempts: int(t)}
	case int32:
		*p = RetryPolicy{Enabled: t > 0, MaxAttempts: int(t)}
	case int64:
		*p = RetryPolicy{Enabled: t > 0, MaxAttempts: int(t)}
	case uint8:
		*p = RetryPolicy{Enabled: t > 0, MaxAttempts: int(t)}
	case uint16:
		*p = RetryPolicy{Enabled: t > 0, MaxAttempts: int(t)}
	case uint32:
		*p = RetryPolicy{Enabled: t > 0, MaxAttempts: int(t)}
	case uint64:
		*p = RetryPolicy{Enabled: t > 0, MaxAttempts: int(t)}
	default:
		return fmt.Errorf("%w: retry field of type %T", courier.ErrInvalidEnvelope, v)
	}
	return nil
}

func (p RetryPolicy) wireString() string {
	if !p.Enabled {
		return "false"
	}
	if p.MaxAttempts > 0 {
		return fmt.Sprintf("%d", p.MaxAttempts)
	}
	return "true"
}
