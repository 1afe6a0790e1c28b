package flags

import (
	"bytes"
	"encoding/json"
)

// Locator is an optional external resource URL. The zero value is absent,
// which is distinct from a present value holding the empty string.
type Locator struct {
	value   string
	present bool
}

// Absent returns the marker for a locator that was not provided.
func Absent() Locator {
	return Locator{}
}

// LocatorOf returns a present locator holding value.
func LocatorOf(value string) Locator {
	return Locator{value: value, present: true}
}

// Present reports whether the locator was provided.
func (l Locator) Present() bool {
	return l.present
}

// Value returns the locator and whether it is present.
func (l Locator) Value() (string, bool) {
	return l.value, l.present
}

func (l Locator) String() string {
	if !l.present {
		return "<absent>"
	}
	return l.value
}

// MarshalJSON encodes an absent locator as null.
func (l Locator) MarshalJSON() ([]byte, error) {
	if !l.present {
		return []byte("null"), nil
	}
	return json.Marshal(l.value)
}

// Viewport holds host viewport dimensions in pixels (or cells for terminals).
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type namedLocator struct {
	name    string
	locator Locator
}

// Flags is the resolved start-up configuration. It is built only by
// Resolver.Resolve and has no mutators; copies share nothing writable.
type Flags struct {
	environment string
	locators    []namedLocator
	viewport    Viewport
	hasViewport bool
}

// Environment returns the deployment mode.
func (f Flags) Environment() string {
	return f.environment
}

// Locator returns the named locator. The boolean is false when the name is not
// a locator known to the resolver that produced f.
func (f Flags) Locator(name string) (Locator, bool) {
	for _, l := range f.locators {
		if l.name == name {
			return l.locator, true
		}
	}
	return Absent(), false
}

// Viewport returns the host viewport and whether it was known at resolution time.
func (f Flags) Viewport() (Viewport, bool) {
	return f.viewport, f.hasViewport
}

// Equal reports whether f and other hold the same values field by field.
func (f Flags) Equal(other Flags) bool {
	if f.environment != other.environment || f.hasViewport != other.hasViewport {
		return false
	}
	if f.hasViewport && f.viewport != other.viewport {
		return false
	}
	if len(f.locators) != len(other.locators) {
		return false
	}
	for i := range f.locators {
		if f.locators[i] != other.locators[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the handoff payload:
// {"environment": ..., <locators>: string|null, "width"?: n, "height"?: n}.
// Keys keep resolver order so the output is byte-for-byte deterministic.
func (f Flags) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := write(fieldEnvironment, f.environment); err != nil {
		return nil, err
	}
	for _, l := range f.locators {
		if err := write(l.name, l.locator); err != nil {
			return nil, err
		}
	}
	if f.hasViewport {
		if err := write(fieldWidth, f.viewport.Width); err != nil {
			return nil, err
		}
		if err := write(fieldHeight, f.viewport.Height); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
