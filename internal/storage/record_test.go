package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRecord_MixedColumns(t *testing.T) {
	r := require.New(t)

	// header size 4 (1 size byte + 3 serial type bytes; size itself is a
	// single byte here since the header is short), serial types:
	//   0  -> NULL
	//   1  -> 1-byte signed int
	//   17 -> text, length (17-13)/2 = 2
	// body: 0x2A, "hi"
	buf := []byte{4, 0, 1, 17, 0x2A, 'h', 'i'}

	values, err := DecodeRecord(buf)
	r.NoError(err)
	r.Len(values, 3)

	r.True(values[0].IsNull())

	i, ok := values[1].Integer()
	r.True(ok)
	r.Equal(int64(42), i)

	s, ok := values[2].Text()
	r.True(ok)
	r.Equal("hi", s)
}

func TestDecodeRecord_ZeroAndOneConstants(t *testing.T) {
	r := require.New(t)

	buf := []byte{3, 8, 9} // header size 3, serial types 8 (zero), 9 (one)
	values, err := DecodeRecord(buf)
	r.NoError(err)
	r.Len(values, 2)

	zero, ok := values[0].Integer()
	r.True(ok)
	r.Equal(int64(0), zero)

	one, ok := values[1].Integer()
	r.True(ok)
	r.Equal(int64(1), one)
}

func TestDecodeRecord_NegativeInt32(t *testing.T) {
	r := require.New(t)

	// header size 2, serial type 4 (4-byte signed int).
	buf := []byte{2, 4, 0xFF, 0xFF, 0xFF, 0xFB} // -5
	values, err := DecodeRecord(buf)
	r.NoError(err)
	r.Len(values, 1)

	i, ok := values[0].Integer()
	r.True(ok)
	r.Equal(int64(-5), i)
}

func TestDecodeRecord_NegativeInt24SignExtends(t *testing.T) {
	r := require.New(t)

	// header size 2, serial type 3 (3-byte signed int): 0x800000 is the
	// minimum 24-bit signed value.
	buf := []byte{2, 3, 0x80, 0x00, 0x00}
	values, err := DecodeRecord(buf)
	r.NoError(err)

	i, ok := values[0].Integer()
	r.True(ok)
	r.Equal(int64(-8388608), i)
}

func TestDecodeRecord_Float64(t *testing.T) {
	r := require.New(t)

	// header size 2, serial type 7 (float64), followed by 8 bytes of 1.5
	// encoded big-endian.
	buf := []byte{2, 7, 0x3F, 0xF8, 0, 0, 0, 0, 0, 0}
	values, err := DecodeRecord(buf)
	r.NoError(err)
	r.Len(values, 1)

	f, ok := values[0].Real()
	r.True(ok)
	r.Equal(1.5, f)
}

func TestDecodeRecord_Blob(t *testing.T) {
	r := require.New(t)

	// header size 2, serial type 16 (blob, length (16-12)/2=2).
	buf := []byte{2, 16, 0xCA, 0xFE}
	values, err := DecodeRecord(buf)
	r.NoError(err)

	b, ok := values[0].Blob()
	r.True(ok)
	r.Equal([]byte{0xCA, 0xFE}, b)
}

func TestDecodeRecord_TruncatedHeaderIsCorrupt(t *testing.T) {
	r := require.New(t)

	_, err := DecodeRecord([]byte{200}) // 0xC8 has the continuation bit set and no byte follows, so the header-size varint itself is truncated
	r.Error(err)
}

func TestDecodeRecord_ReservedSerialTypeIsCorrupt(t *testing.T) {
	r := require.New(t)

	buf := []byte{2, 10}
	_, err := DecodeRecord(buf)
	r.Error(err)
}

func TestSerialTypeWidth(t *testing.T) {
	r := require.New(t)

	cases := map[uint64]int{
		0: 0, 1: 1, 2: 2, 3: 3, 4: 4, 5: 6, 6: 8, 7: 8, 8: 0, 9: 0,
		12: 0, 13: 0, 14: 1, 15: 1,
	}
	for st, want := range cases {
		got, err := SerialTypeWidth(st)
		r.NoError(err)
		r.Equal(want, got, "serial type %d", st)
	}
}

func TestLocalPayload_SmallFitsEntirelyLocal(t *testing.T) {
	r := require.New(t)
	r.Equal(uint64(10), LocalPayload(4096, 10, false))
}

func TestLocalPayload_LargeSpillsToOverflow(t *testing.T) {
	r := require.New(t)
	local := LocalPayload(4096, 100000, false)
	r.Less(local, uint64(100000))
	r.Greater(local, uint64(0))
}

type fakeOverflowPages struct {
	pages map[uint32][]byte
}

func (f *fakeOverflowPages) ReadPage(pageNo uint32) ([]byte, error) {
	p, ok := f.pages[pageNo]
	if !ok {
		return nil, errPageNotFound
	}
	return p, nil
}

var errPageNotFound = fakeError("page not found")

type fakeError string

func (e fakeError) Error() string { return string(e) }

func TestReadPayload_FollowsOverflowChain(t *testing.T) {
	r := require.New(t)

	full := []byte("this payload is long enough to require two overflow pages worth of storage")
	localLen := 10
	local := full[:localLen]
	remaining := full[localLen:]

	split := len(remaining) / 2
	page2 := append([]byte{0, 0, 0, 3}, remaining[:split]...)
	page3 := append([]byte{0, 0, 0, 0}, remaining[split:]...)

	ov := &fakeOverflowPages{pages: map[uint32][]byte{
		2: page2,
		3: page3,
	}}

	got, err := ReadPayload(local, uint64(len(full)), 2, 4096, ov)
	r.NoError(err)
	r.Equal(full, got)
}

func TestReadPayload_DetectsCycle(t *testing.T) {
	r := require.New(t)

	local := []byte("ab")
	page := append([]byte{0, 0, 0, 2}, []byte("cd")...)
	ov := &fakeOverflowPages{pages: map[uint32][]byte{2: page}}

	_, err := ReadPayload(local, 100, 2, 4096, ov)
	r.Error(err)
}

func TestReadPayload_LocalOnly(t *testing.T) {
	r := require.New(t)

	full := []byte("fits entirely local")
	got, err := ReadPayload(full, uint64(len(full)), 0, 4096, nil)
	r.NoError(err)
	r.Equal(full, got)
}
