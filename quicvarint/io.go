// Package quicvarint implements the QUIC variable-length integer encoding:
// the top two bits of the first byte select a 1, 2, 4, or 8-byte encoding,
// and the remaining bits hold a big-endian unsigned integer.
package quicvarint

import (
	"bytes"
	"io"
)

// Reader is a reader that can also read a single byte, the minimal
// capability the varint decoder needs.
type Reader interface {
	io.ByteReader
	io.Reader
}

var _ Reader = &bytes.Reader{}

type wrappedReader struct {
	io.ByteReader
	io.Reader
}

type byteOnlyReader struct {
	io.Reader
}

func (r *byteOnlyReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r.Reader, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// NewReader adapts r to a Reader, wrapping it only if it doesn't already
// implement io.ByteReader.
func NewReader(r io.Reader) Reader {
	if rr, ok := r.(Reader); ok {
		return rr
	}
	if br, ok := r.(io.ByteReader); ok {
		return &wrappedReader{br, r}
	}
	return &byteOnlyReader{r}
}
