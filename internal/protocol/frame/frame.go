package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the size of the big-endian uint32 length prefix.
const HeaderLen = 4

var (
	ErrShortHeader      = errors.New("frame: short length header")
	ErrTruncatedPayload = errors.New("frame: truncated payload")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
)

// Limits constrains what ReadFrame will allocate for a peer's frame.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// ReadFrame reads one length-prefixed payload from r. The payload is
// accumulated across as many reads as the transport needs. A clean EOF before
// any header byte is returned as io.EOF so callers can tell a closed peer from
// a broken frame.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}

	n := DecodeHeader(head)
	if limits.MaxPayloadBytes > 0 && n > limits.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, limits.MaxPayloadBytes)
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, ErrTruncatedPayload
			}
			return nil, err
		}
	}
	return payload, nil
}

// WriteFrame writes the length prefix and payload in a single Write. Only the
// uint32 header bounds the payload; Limits apply to what a peer sends.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	buf := make([]byte, HeaderLen+len(payload))
	head := EncodeHeader(uint32(len(payload)))
	copy(buf, head[:])
	copy(buf[HeaderLen:], payload)
	_, err := w.Write(buf)
	return err
}

func EncodeHeader(n uint32) [HeaderLen]byte {
	var b [HeaderLen]byte
	binary.BigEndian.PutUint32(b[:], n)
	return b
}

func DecodeHeader(b [HeaderLen]byte) uint32 {
	return binary.BigEndian.Uint32(b[:])
}
