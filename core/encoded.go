package core

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Encoded holds key material exactly as the client sent it: a hex string
// (optionally 0x prefixed) or a list of byte values. Decoding is deferred so
// that each field fails with its own error.
type Encoded struct {
	hex    string
	values []int
	raw    []byte
	isRaw  bool
}

// HexEncoded wraps a hex string
func HexEncoded(s string) Encoded {
	return Encoded{hex: s}
}

// RawEncoded wraps raw bytes
func RawEncoded(b []byte) Encoded {
	return Encoded{raw: append([]byte(nil), b...), isRaw: true}
}

// IsZero reports whether nothing was supplied
func (e Encoded) IsZero() bool {
	return e.hex == "" && len(e.values) == 0 && len(e.raw) == 0
}

// Bytes decodes the material
func (e Encoded) Bytes() ([]byte, error) {
	switch {
	case e.isRaw:
		if len(e.raw) == 0 {
			return nil, errors.New("empty value")
		}
		return append([]byte(nil), e.raw...), nil
	case len(e.values) > 0:
		out := make([]byte, len(e.values))
		for i, v := range e.values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("byte %d out of range: %d", i, v)
			}
			out[i] = byte(v)
		}
		return out, nil
	}

	s := strings.TrimPrefix(strings.TrimPrefix(e.hex, "0x"), "0X")
	if s == "" {
		return nil, errors.New("empty value")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// String returns the hex form, or the raw form hex encoded
func (e Encoded) String() string {
	if e.hex != "" {
		return e.hex
	}
	b, err := e.Bytes()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// MarshalJSON encodes as a hex string
func (e Encoded) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON accepts a string or an array of numbers
func (e *Encoded) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = Encoded{}
		return nil
	}

	if data[0] == '[' {
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		*e = Encoded{values: values}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	*e = Encoded{hex: s}
	return nil
}
