package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

// chunkReader hands out its chunks one Read at a time.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestReadWriteFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.Equal(t, []byte{0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o'}, buf.Bytes())

	out, err := ReadFrame(&buf, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, "hello", string(out))
}

func TestReadFrameAccumulatesSplitPayload(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{
		{0x00, 0x00, 0x00, 0x03},
		[]byte("f"),
		[]byte("oo"),
	}}
	out, err := ReadFrame(r, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, "foo", string(out))
}

func TestReadFrameSplitHeader(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{{0x00, 0x00}, {0x00, 0x01}, []byte("x")}}
	out, err := ReadFrame(r, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, "x", string(out))
}

func TestReadFrameOneByteReads(t *testing.T) {
	src := append([]byte{0, 0, 0, 3}, "foo"...)
	out, err := ReadFrame(iotest.OneByteReader(bytes.NewReader(src)), DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, "foo", string(out))
}

func TestReadFrameZeroLength(t *testing.T) {
	out, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0}), DefaultLimits())
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	require.True(t, errors.Is(err, ErrShortHeader), "got %v", err)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 5, 'a', 'b'}), DefaultLimits())
	require.ErrorIs(t, err, ErrTruncatedPayload)
}

func TestReadFramePayloadTooLarge(t *testing.T) {
	head := EncodeHeader(1 << 20)
	_, err := ReadFrame(bytes.NewReader(head[:]), Limits{MaxPayloadBytes: 1024})
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestWriteFrameIgnoresReadLimit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 10)))
	require.Equal(t, HeaderLen+10, buf.Len())

	_, err := ReadFrame(bytes.NewReader(buf.Bytes()), Limits{MaxPayloadBytes: 4})
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	got, err := ReadFrame(bytes.NewReader(buf.Bytes()), DefaultLimits())
	require.NoError(t, err)
	require.Len(t, got, 10)
}
