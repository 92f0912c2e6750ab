package quicvarint

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimits(t *testing.T) {
	require.Equal(t, uint64(1<<62-1), Max)
}

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected uint64
	}{
		{"1 byte", []byte{0b00011001}, 25},
		{"2 byte", []byte{0b01111011, 0xbd}, 15293},
		{"4 byte", []byte{0b10011101, 0x7f, 0x3e, 0x7d}, 494878333},
		{"8 byte", []byte{0b11000010, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8, 0x8c}, 151288809941952652},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.input)
			val, err := Read(r)
			require.NoError(t, err)
			require.Equal(t, tt.expected, val)
			require.Zero(t, r.Len())
		})
	}
}

func TestReadShortBuffer(t *testing.T) {
	r := bytes.NewReader([]byte{0b01000000})
	_, err := Read(r)
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		input         []byte
		expectedValue uint64
		expectedLen   int
	}{
		{"1 byte", []byte{0b00011001}, 25, 1},
		{"2 byte", []byte{0b01111011, 0xbd}, 15293, 2},
		{"4 byte", []byte{0b10011101, 0x7f, 0x3e, 0x7d}, 494878333, 4},
		{"8 byte", []byte{0b11000010, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8, 0x8c}, 151288809941952652, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, l, err := Parse(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.expectedValue, value)
			require.Equal(t, tt.expectedLen, l)
		})
	}
}

func TestParseShortBuffer(t *testing.T) {
	tests := [][]byte{
		{},
		{0b01000001},
		{0b10000001, 0x02},
	}
	for _, input := range tests {
		_, _, err := Parse(input)
		require.ErrorIs(t, err, ErrShortBuffer)
	}
}

func TestLen(t *testing.T) {
	require.Equal(t, 1, Len(0))
	require.Equal(t, 1, Len(63))
	require.Equal(t, 2, Len(64))
	require.Equal(t, 2, Len(16383))
	require.Equal(t, 4, Len(16384))
	require.Equal(t, 4, Len(1073741823))
	require.Equal(t, 8, Len(1073741824))
	require.Equal(t, 8, Len(Max))
}

func TestLenTooLarge(t *testing.T) {
	require.Panics(t, func() { Len(Max + 1) })
}

func TestAppendRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824, Max}
	for _, v := range values {
		b := Append(nil, v)
		require.Len(t, b, Len(v))
		got, n, err := Parse(b)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(b), n)
	}
}

func TestAppendWithLen(t *testing.T) {
	tests := []struct {
		value  uint64
		length int
		want   []byte
	}{
		{0x42, 1, []byte{0x42}},
		{0x1234, 2, []byte{0x12, 0x34}},
		{0x010203, 3, []byte{0x01, 0x02, 0x03}},
		{0x01020304, 4, []byte{0x01, 0x02, 0x03, 0x04}},
	}
	for _, tt := range tests {
		got := AppendWithLen(nil, tt.value, tt.length)
		require.Equal(t, tt.want, got)
	}
}

func TestAppendWithLenInvalid(t *testing.T) {
	require.Panics(t, func() { AppendWithLen(nil, 1, 5) })
}
