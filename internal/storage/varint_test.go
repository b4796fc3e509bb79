package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarint_RoundTrip_SmallValues(t *testing.T) {
	r := require.New(t)

	for i := uint64(0); i < 2048; i++ {
		buf := bytes.Buffer{}
		n, err := WriteVarint(&buf, i)
		r.NoError(err)
		r.Equal(VarintLen(i), n)

		v, read, err := ReadVarint(bytes.NewReader(buf.Bytes()))
		r.NoError(err)
		r.Equal(n, read)
		r.Equal(i, v)
	}
}

func TestVarint_SingleByteBoundary(t *testing.T) {
	r := require.New(t)

	// 0x7f is the largest value representable in a single byte; the high
	// bit of the stored byte must be clear.
	buf := bytes.Buffer{}
	_, err := WriteVarint(&buf, 0x7f)
	r.NoError(err)
	r.Equal([]byte{0x7f}, buf.Bytes())

	v, n, err := ReadVarint(bytes.NewReader(buf.Bytes()))
	r.NoError(err)
	r.Equal(1, n)
	r.Equal(uint64(0x7f), v)
}

func TestVarint_TwoByteBoundary(t *testing.T) {
	r := require.New(t)

	buf := bytes.Buffer{}
	_, err := WriteVarint(&buf, 0x80)
	r.NoError(err)
	r.Equal([]byte{0x81, 0x00}, buf.Bytes())

	v, n, err := ReadVarint(bytes.NewReader(buf.Bytes()))
	r.NoError(err)
	r.Equal(2, n)
	r.Equal(uint64(0x80), v)
}

func TestVarint_NinthByteCarriesFullByte(t *testing.T) {
	r := require.New(t)

	v := uint64(0xFFFFFFFFFFFFFFFF)
	buf := bytes.Buffer{}
	n, err := WriteVarint(&buf, v)
	r.NoError(err)
	r.Equal(9, n)
	r.Equal(byte(0xFF), buf.Bytes()[8])

	got, read, err := ReadVarint(bytes.NewReader(buf.Bytes()))
	r.NoError(err)
	r.Equal(9, read)
	r.Equal(v, got)
}

func TestVarint_ReadVarintBytes_Truncated(t *testing.T) {
	r := require.New(t)

	// A continuation-flagged byte with nothing after it can't be decoded.
	_, _, ok := ReadVarintBytes([]byte{0x81})
	r.False(ok)
}

func TestVarint_ReadVarintBytes_MatchesReader(t *testing.T) {
	r := require.New(t)

	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, 1<<63 - 1} {
		buf := bytes.Buffer{}
		_, err := WriteVarint(&buf, v)
		r.NoError(err)

		got, n, ok := ReadVarintBytes(buf.Bytes())
		r.True(ok)
		r.Equal(v, got)
		r.Equal(buf.Len(), n)
	}
}
