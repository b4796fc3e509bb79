package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/joeandaverde/litescan/internal/errs"
)

// HeaderSize is the fixed size of the database file header that prefixes
// page 1, in addition to that page's own B-tree page header.
const HeaderSize = 100

var magic = [16]byte{'S', 'Q', 'L', 'i', 't', 'e', ' ', 'f', 'o', 'r', 'm', 'a', 't', ' ', '3', 0}

// TextEncoding identifies how TEXT values in this database are encoded.
type TextEncoding uint32

const (
	EncodingUTF8    TextEncoding = 1
	EncodingUTF16LE TextEncoding = 2
	EncodingUTF16BE TextEncoding = 3
)

func (e TextEncoding) String() string {
	switch e {
	case EncodingUTF8:
		return "UTF-8"
	case EncodingUTF16LE:
		return "UTF-16le"
	case EncodingUTF16BE:
		return "UTF-16be"
	default:
		return "unknown"
	}
}

// FileHeader is the 100-byte header at the start of every SQLite database
// file, decoded down to the fields this engine needs to read the rest of
// the file.
type FileHeader struct {
	// PageSize is the size in bytes of every page in the file, a power of
	// two between 512 and 65536 inclusive. The on-disk field is a uint16
	// where 1 is a special case meaning 65536.
	PageSize uint32
	// ReservedSpace is the number of bytes reserved per page, at the end of
	// the page, for extensions. Usually 0. Usable page size is
	// PageSize - ReservedSpace.
	ReservedSpace byte
	// FileFormatWriteVersion and FileFormatReadVersion are 1 for legacy
	// rollback-journal mode, 2 for WAL.
	FileFormatWriteVersion byte
	FileFormatReadVersion  byte
	// FileChangeCounter increases on every modification to the database.
	FileChangeCounter uint32
	// SizeInPages is the in-header size of the database in pages; 0 means
	// the true size must be taken from the file's length instead.
	SizeInPages uint32
	// SchemaVersion increases on every modification to the schema.
	SchemaVersion uint32
	// TextEncoding is the encoding used for all TEXT values.
	TextEncoding TextEncoding
}

// UsablePageSize is the portion of each page available to B-tree content,
// after subtracting the reserved-space tail.
func (h FileHeader) UsablePageSize() uint32 {
	return h.PageSize - uint32(h.ReservedSpace)
}

// ParseFileHeader decodes the 100-byte database header from buf. buf must
// be exactly HeaderSize bytes, as read from the start of page 1.
func ParseFileHeader(buf []byte) (FileHeader, error) {
	if len(buf) != HeaderSize {
		return FileHeader{}, &errs.FormatError{Msg: "file header must be 100 bytes"}
	}

	var m [16]byte
	copy(m[:], buf[0:16])
	if m != magic {
		return FileHeader{}, &errs.FormatError{Msg: "missing SQLite format 3 magic"}
	}

	rawPageSize := binary.BigEndian.Uint16(buf[16:18])
	var pageSize uint32
	switch {
	case rawPageSize == 1:
		pageSize = 65536
	case rawPageSize >= 512 && isPowerOfTwo(uint32(rawPageSize)):
		pageSize = uint32(rawPageSize)
	default:
		return FileHeader{}, &errs.FormatError{Msg: "invalid page size"}
	}

	encoding := TextEncoding(binary.BigEndian.Uint32(buf[56:60]))
	switch encoding {
	case EncodingUTF8:
	case 0:
		// A freshly-created, schema-less database may leave this field
		// zero; treat it as the UTF-8 default.
		encoding = EncodingUTF8
	case EncodingUTF16LE, EncodingUTF16BE:
		// Decoding UTF-16 correctly is out of scope for this core; opening
		// such a file would otherwise surface TEXT as raw, undecoded bytes,
		// the exact mojibake outcome rejected up front instead.
		return FileHeader{}, &errs.FormatError{Msg: fmt.Sprintf("unsupported text encoding: %s", encoding)}
	default:
		return FileHeader{}, &errs.FormatError{Msg: "invalid text encoding"}
	}

	return FileHeader{
		PageSize:               pageSize,
		ReservedSpace:          buf[20],
		FileFormatWriteVersion: buf[18],
		FileFormatReadVersion:  buf[19],
		FileChangeCounter:      binary.BigEndian.Uint32(buf[24:28]),
		SizeInPages:            binary.BigEndian.Uint32(buf[28:32]),
		SchemaVersion:          binary.BigEndian.Uint32(buf[40:44]),
		TextEncoding:           encoding,
	}, nil
}

func isPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}

// WriteTo serializes h back into a 100-byte header. It exists only for the
// synthetic-database builder the test suite uses to construct fixtures.
func (h FileHeader) WriteTo(buf []byte) {
	if len(buf) != HeaderSize {
		panic("file header buffer must be 100 bytes")
	}

	copy(buf[0:16], magic[:])

	rawPageSize := uint16(h.PageSize)
	if h.PageSize == 65536 {
		rawPageSize = 1
	}
	binary.BigEndian.PutUint16(buf[16:18], rawPageSize)

	writeVersion := h.FileFormatWriteVersion
	if writeVersion == 0 {
		writeVersion = 1
	}
	readVersion := h.FileFormatReadVersion
	if readVersion == 0 {
		readVersion = 1
	}
	buf[18] = writeVersion
	buf[19] = readVersion
	buf[20] = h.ReservedSpace
	buf[21] = 64
	buf[22] = 32
	buf[23] = 32

	binary.BigEndian.PutUint32(buf[24:28], h.FileChangeCounter)
	binary.BigEndian.PutUint32(buf[28:32], h.SizeInPages)
	binary.BigEndian.PutUint32(buf[40:44], h.SchemaVersion)
	binary.BigEndian.PutUint32(buf[44:48], 4)

	encoding := h.TextEncoding
	if encoding == 0 {
		encoding = EncodingUTF8
	}
	binary.BigEndian.PutUint32(buf[56:60], uint32(encoding))
}
