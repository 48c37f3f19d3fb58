// Package codec maps user-visible column names to storage-safe SQL identifiers.
//
// An identifier is a reversible text encoding of the name's UTF-8 bytes, so
// any string (keywords, quotes, whitespace) becomes an ASCII identifier that can
// be quoted into DDL without escaping, and decodes back to the same name.
// Base64 is the canonical scheme. Backends that fold identifier case use
// Base32, whose alphabet has a single case.
package codec

import (
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

var ErrNotIdentifier = errors.New("codec: not an encoded column identifier")

type encoding interface {
	EncodeToString(src []byte) string
	DecodeString(s string) ([]byte, error)
	EncodedLen(n int) int
}

// Scheme is one name-to-identifier encoding.
type Scheme struct {
	Name string
	enc  encoding
}

var (
	// Base64 is padded standard base64. Identifiers are case-sensitive.
	Base64 = Scheme{Name: "base64", enc: base64.StdEncoding}
	// Base32 is padded standard base32: upper case letters, 2-7 and '='.
	Base32 = Scheme{Name: "base32", enc: base32.StdEncoding}
)

func (s Scheme) Encode(name string) string {
	return s.enc.EncodeToString([]byte(name))
}

func (s Scheme) Decode(id string) (string, error) {
	raw, err := s.enc.DecodeString(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not %s", ErrNotIdentifier, id, s.Name)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: %q is not utf-8", ErrNotIdentifier, id)
	}
	return string(raw), nil
}

// EncodedLen is len(s.Encode(name)) without allocating.
func (s Scheme) EncodedLen(name string) int {
	return s.enc.EncodedLen(len(name))
}

// Fits reports whether name's identifier fits in limit bytes. A limit <= 0
// means the backend imposes none.
func (s Scheme) Fits(name string, limit int) bool {
	return limit <= 0 || s.EncodedLen(name) <= limit
}
