package job

import (
	"encoding/json"
	"fmt"
)

// ArgList is the ordered sequence of opaque positional arguments carried
// by an envelope. Values are always JSON-encoded, independent of the
// outer envelope codec, so both ends agree on argument semantics.
type ArgList []json.RawMessage

// Args JSON-encodes positional values into an ArgList.
func Args(values ...any) (ArgList, error) {
	list := make(ArgList, 0, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("job: encode arg %d: %w", i, err)
		}
		list = append(list, raw)
	}
	return list, nil
}

// MustArgs is like Args but panics on encode failure. Use for literals.
func MustArgs(values ...any) ArgList {
	list, err := Args(values...)
	if err != nil {
		panic(err)
	}
	return list
}

// Decode unmarshals arguments positionally into the given pointers.
// Fewer targets than arguments is allowed; more is an error.
func (a ArgList) Decode(targets ...any) error {
	if len(targets) > len(a) {
		return fmt.Errorf("job: decode %d args into %d targets", len(a), len(targets))
	}
	for i, t := range targets {
		if err := json.Unmarshal(a[i], t); err != nil {
			return fmt.Errorf("job: decode arg %d: %w", i, err)
		}
	}
	return nil
}
