package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/wbrown/janus-relational/relational"
)

// Row values are self-describing: a field count followed by one
// type-tagged encoding per column. Integers are fixed 8-byte
// little-endian, strings are uvarint-length-prefixed raw bytes. The
// schema record repeats the same framing for attribute names.

// encodeTuple serializes a tuple into a row value.
func encodeTuple(t relational.Tuple) ([]byte, error) {
	buf := make([]byte, 0, 2+9*len(t))
	buf = binary.AppendUvarint(buf, uint64(len(t)))

	for i, f := range t {
		switch f := f.(type) {
		case relational.IntField:
			buf = append(buf, byte(relational.IntType))
			buf = append(buf, f.Bytes()...)
		case relational.StringField:
			buf = append(buf, byte(relational.StringType))
			buf = binary.AppendUvarint(buf, uint64(len(f)))
			buf = append(buf, f.Bytes()...)
		default:
			return nil, fmt.Errorf("field %d: unsupported field type %T", i, f)
		}
	}

	return buf, nil
}

// decodeTuple deserializes a row value.
func decodeTuple(data []byte) (relational.Tuple, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("truncated field count")
	}
	data = data[n:]

	// Every field needs at least a type byte
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("field count %d exceeds payload", count)
	}

	tuple := make(relational.Tuple, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(data) == 0 {
			return nil, fmt.Errorf("field %d: truncated", i)
		}
		ftype := relational.FieldType(data[0])
		data = data[1:]

		switch ftype {
		case relational.IntType:
			if len(data) < 8 {
				return nil, fmt.Errorf("field %d: truncated int", i)
			}
			tuple = append(tuple, relational.IntField(binary.LittleEndian.Uint64(data)))
			data = data[8:]

		case relational.StringType:
			size, n := binary.Uvarint(data)
			if n <= 0 || uint64(len(data)-n) < size {
				return nil, fmt.Errorf("field %d: truncated string", i)
			}
			data = data[n:]
			tuple = append(tuple, relational.StringField(data[:size]))
			data = data[size:]

		default:
			return nil, fmt.Errorf("field %d: unknown field type %d", i, ftype)
		}
	}

	return tuple, nil
}

// encodeTableMeta serializes a table's row count and schema.
func encodeTableMeta(schema *relational.Schema, rows int) []byte {
	buf := make([]byte, 0, 16+16*schema.Len())
	buf = binary.AppendUvarint(buf, uint64(rows))
	buf = binary.AppendUvarint(buf, uint64(schema.Len()))

	for i := 0; i < schema.Len(); i++ {
		attr := schema.Attribute(i)
		buf = append(buf, byte(attr.Type))
		buf = binary.AppendUvarint(buf, uint64(len(attr.Name)))
		buf = append(buf, attr.Name...)
	}

	return buf
}

// decodeTableMeta deserializes a table's schema record.
func decodeTableMeta(data []byte) (*relational.Schema, int, error) {
	rows, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, 0, fmt.Errorf("truncated row count")
	}
	data = data[n:]

	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, 0, fmt.Errorf("truncated attribute count")
	}
	data = data[n:]

	// Every attribute needs at least a type byte and a name length
	if count > uint64(len(data)) {
		return nil, 0, fmt.Errorf("attribute count %d exceeds payload", count)
	}

	attrs := make([]relational.Attribute, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(data) == 0 {
			return nil, 0, fmt.Errorf("attribute %d: truncated", i)
		}
		ftype := relational.FieldType(data[0])
		data = data[1:]

		size, n := binary.Uvarint(data)
		if n <= 0 || uint64(len(data)-n) < size {
			return nil, 0, fmt.Errorf("attribute %d: truncated name", i)
		}
		data = data[n:]

		attrs = append(attrs, relational.Attribute{Name: string(data[:size]), Type: ftype})
		data = data[size:]
	}

	return relational.NewSchema(attrs), int(rows), nil
}
