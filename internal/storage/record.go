package storage

import (
	"encoding/binary"
	"math"

	"github.com/joeandaverde/litescan/internal/errs"
	"github.com/joeandaverde/litescan/internal/value"
)

// OverflowReader fetches the byte content of an overflow page given its
// page number, returning the page's raw bytes so the caller can split the
// 4-byte next-page pointer from the payload fragment itself. Implemented
// by the pager so this package stays free of any page-cache concern.
type OverflowReader interface {
	ReadPage(pageNo uint32) ([]byte, error)
}

// LocalPayload computes how many bytes of a payload of the given total size
// are stored in-page (the rest spills to an overflow chain), per SQLite's
// X/M/K formulas (database format, section 1.5).
//
// usableSize is PageSize - ReservedSpace. isIndexLeaf selects the smaller
// maximum-local bound X that index interior and leaf cells use; table leaf
// cells use the larger U-35 bound. The minimum bound M is the same for both.
func LocalPayload(usableSize uint32, payloadSize uint64, isIndexLeaf bool) uint64 {
	u := uint64(usableSize)

	maxLocal := u - 35
	if isIndexLeaf {
		maxLocal = (u-12)*64/255 - 23
	}

	if payloadSize <= maxLocal {
		return payloadSize
	}

	minLocal := (u-12)*32/255 - 23
	k := minLocal + (payloadSize-minLocal)%(u-4)
	if k <= maxLocal {
		return k
	}
	return minLocal
}

// ReadPayload reassembles a cell's full payload, following the overflow
// chain referenced by a trailing 4-byte next-page pointer when the payload
// didn't fit entirely in the local fragment.
func ReadPayload(local []byte, payloadSize uint64, overflowPage uint32, usableSize uint32, overflow OverflowReader) ([]byte, error) {
	if uint64(len(local)) >= payloadSize {
		return local[:payloadSize], nil
	}

	buf := make([]byte, 0, payloadSize)
	buf = append(buf, local...)

	next := overflowPage
	visited := map[uint32]bool{}
	for uint64(len(buf)) < payloadSize {
		if next == 0 {
			return nil, &errs.CorruptError{Msg: "overflow chain ended before payload was fully read"}
		}
		if visited[next] {
			return nil, &errs.CorruptError{Msg: "overflow chain cycle detected"}
		}
		visited[next] = true

		page, err := overflow.ReadPage(next)
		if err != nil {
			return nil, err
		}
		if len(page) < 4 {
			return nil, &errs.CorruptError{Msg: "overflow page too small for chain pointer"}
		}

		next = binary.BigEndian.Uint32(page[0:4])

		remaining := payloadSize - uint64(len(buf))
		chunk := page[4:]
		if uint64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		buf = append(buf, chunk...)
	}

	return buf, nil
}

// DecodeRecord parses a fully-reassembled record payload into its ordered
// column values, per the serial-type table SQLite's record format defines.
func DecodeRecord(payload []byte) ([]value.Value, error) {
	headerSize, n, ok := ReadVarintBytes(payload)
	if !ok {
		return nil, &errs.CorruptError{Msg: "record header size varint truncated"}
	}
	if headerSize < uint64(n) || headerSize > uint64(len(payload)) {
		return nil, &errs.CorruptError{Msg: "record header size out of bounds"}
	}

	var serialTypes []uint64
	pos := n
	for uint64(pos) < headerSize {
		st, sn, ok := ReadVarintBytes(payload[pos:])
		if !ok {
			return nil, &errs.CorruptError{Msg: "record serial type varint truncated"}
		}
		serialTypes = append(serialTypes, st)
		pos += sn

		if len(serialTypes) > 10000 {
			return nil, &errs.CorruptError{Msg: "record declares implausibly many columns"}
		}
	}
	if uint64(pos) != headerSize {
		return nil, &errs.CorruptError{Msg: "record header size does not match serial type list"}
	}

	body := payload[int(headerSize):]
	values := make([]value.Value, 0, len(serialTypes))
	offset := 0
	for _, st := range serialTypes {
		v, width, err := decodeSerialValue(st, body[offset:])
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		offset += width
	}

	return values, nil
}

// SerialTypeWidth returns the number of payload bytes a serial type code
// occupies, without decoding the value.
func SerialTypeWidth(st uint64) (int, error) {
	switch {
	case st == 0, st == 8, st == 9:
		return 0, nil
	case st == 1:
		return 1, nil
	case st == 2:
		return 2, nil
	case st == 3:
		return 3, nil
	case st == 4:
		return 4, nil
	case st == 5:
		return 6, nil
	case st == 6, st == 7:
		return 8, nil
	case st == 10 || st == 11:
		return 0, &errs.CorruptError{Msg: "reserved serial type"}
	case st >= 12 && st%2 == 0:
		return int((st - 12) / 2), nil
	case st >= 13:
		return int((st - 13) / 2), nil
	default:
		return 0, &errs.CorruptError{Msg: "invalid serial type"}
	}
}

func decodeSerialValue(st uint64, body []byte) (value.Value, int, error) {
	width, err := SerialTypeWidth(st)
	if err != nil {
		return value.Value{}, 0, err
	}
	if len(body) < width {
		return value.Value{}, 0, &errs.CorruptError{Msg: "record body truncated"}
	}

	switch {
	case st == 0:
		return value.NewNull(), 0, nil
	case st == 8:
		return value.NewInteger(0), 0, nil
	case st == 9:
		return value.NewInteger(1), 0, nil
	case st == 1:
		return value.NewInteger(int64(int8(body[0]))), 1, nil
	case st == 2:
		return value.NewInteger(int64(int16(binary.BigEndian.Uint16(body[:2])))), 2, nil
	case st == 3:
		return value.NewInteger(signExtend(body[:3], 3)), 3, nil
	case st == 4:
		return value.NewInteger(int64(int32(binary.BigEndian.Uint32(body[:4])))), 4, nil
	case st == 5:
		return value.NewInteger(signExtend(body[:6], 6)), 6, nil
	case st == 6:
		return value.NewInteger(int64(binary.BigEndian.Uint64(body[:8]))), 8, nil
	case st == 7:
		bits := binary.BigEndian.Uint64(body[:8])
		return value.NewReal(math.Float64frombits(bits)), 8, nil
	case st >= 12 && st%2 == 0:
		b := make([]byte, width)
		copy(b, body[:width])
		return value.NewBlob(b), width, nil
	case st >= 13:
		return value.NewText(string(body[:width])), width, nil
	default:
		return value.Value{}, 0, &errs.CorruptError{Msg: "invalid serial type"}
	}
}

// signExtend interprets the first n bytes of b (big-endian) as a signed
// integer of that width and sign-extends it to int64.
func signExtend(b []byte, n int) int64 {
	var v int64
	if b[0]&0x80 != 0 {
		v = -1
	}
	for _, by := range b[:n] {
		v = (v << 8) | int64(by)
	}
	return v
}
