package storage

import "io"

// ReadVarint decodes a SQLite variable-length integer from reader.
// It returns the decoded value and the number of bytes consumed.
//
// SQLite varints are 1-9 bytes, big-endian, with the high bit of each of the
// first 8 bytes signaling continuation. The 9th byte, if reached, carries no
// continuation bit and contributes all 8 of its bits. This is unrelated to
// the byte-range-keyed varint scheme SQLite4 uses; the on-disk format this
// package reads is SQLite3's.
func ReadVarint(reader io.ByteReader) (uint64, int, error) {
	var v uint64

	for i := 0; i < 8; i++ {
		b, err := reader.ReadByte()
		if err != nil {
			return 0, i, err
		}

		v = (v << 7) | uint64(b&0x7f)

		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}

	b, err := reader.ReadByte()
	if err != nil {
		return 0, 8, err
	}
	v = (v << 8) | uint64(b)

	return v, 9, nil
}

// ReadVarintBytes decodes a SQLite varint from the front of buf without an
// io.ByteReader wrapper, for callers already holding a page slice.
func ReadVarintBytes(buf []byte) (value uint64, n int, ok bool) {
	var v uint64

	for i := 0; i < 8; i++ {
		if i >= len(buf) {
			return 0, 0, false
		}
		b := buf[i]
		v = (v << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, i + 1, true
		}
	}

	if len(buf) < 9 {
		return 0, 0, false
	}
	v = (v << 8) | uint64(buf[8])

	return v, 9, true
}

// AppendVarint appends the SQLite varint encoding of v to buf and returns
// the extended slice, for callers building fixtures byte-slice-at-a-time
// rather than through an io.ByteWriter.
func AppendVarint(buf []byte, v uint64) []byte {
	if v > 0x00FFFFFFFFFFFFFF {
		for i := 0; i < 8; i++ {
			shift := uint(57 - 7*i)
			buf = append(buf, byte((v>>shift)&0x7f)|0x80)
		}
		return append(buf, byte(v))
	}

	n := VarintLen(v)
	start := len(buf)
	buf = append(buf, make([]byte, n)...)
	for i := n - 1; i >= 0; i-- {
		buf[start+i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	buf[start+n-1] &^= 0x80
	return buf
}

// VarintLen returns the number of bytes WriteVarint would emit for v.
func VarintLen(v uint64) int {
	n := 1
	for rest := v >> 7; rest != 0 && n < 9; rest >>= 7 {
		n++
	}
	return n
}

// WriteVarint encodes v as a SQLite varint and writes it to w. It exists for
// the synthetic-database builder the test suite uses to construct
// well-formed and deliberately-corrupt fixtures; the reader itself never
// writes.
func WriteVarint(w io.ByteWriter, v uint64) (int, error) {
	if v > 0x00FFFFFFFFFFFFFF {
		for i := 0; i < 8; i++ {
			shift := uint(57 - 7*i)
			if err := w.WriteByte(byte((v>>shift)&0x7f) | 0x80); err != nil {
				return i, err
			}
		}
		if err := w.WriteByte(byte(v)); err != nil {
			return 8, err
		}
		return 9, nil
	}

	n := VarintLen(v)
	buf := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	buf[n-1] &^= 0x80

	for i, b := range buf {
		if err := w.WriteByte(b); err != nil {
			return i, err
		}
	}
	return n, nil
}
