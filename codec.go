// codec.go: fixed-layout binary encoding for random-access records.
//
// Little-endian throughout, sizes exact:
//
//	INTEGER  4 bytes signed
//	REAL     8 bytes IEEE-754
//	BOOLEAN  1 byte (0/1)
//	CHAR     4 bytes unsigned code point
//	DATE     4 bytes signed day number (day 0 = 0001-01-01)
//	enum     4 bytes signed ordinal
//	array    dimensions row-major, elements concatenated
//	record   fields concatenated in declared order
//
// STRING, SET, POINTER and class fields never reach this codec: the checker
// rejects them for random-file records.
package lucid

import (
	"encoding/binary"
	"math"
)

// encodeValue appends the fixed-layout encoding of v.
func encodeValue(b []byte, v Value) []byte {
	switch v.T.Kind {
	case TInteger, TDate, TEnum:
		return binary.LittleEndian.AppendUint32(b, uint32(v.asInt()))
	case TReal:
		return binary.LittleEndian.AppendUint64(b, math.Float64bits(v.asReal()))
	case TBoolean:
		if v.asBool() {
			return append(b, 1)
		}
		return append(b, 0)
	case TChar:
		return binary.LittleEndian.AppendUint32(b, uint32(v.asChar()))
	case TArray:
		for _, c := range v.Data.(*ArrayVal).Cells {
			b = encodeValue(b, c.V)
		}
		return b
	case TRecord:
		for _, c := range v.Data.(*RecordVal).Cells {
			b = encodeValue(b, c.V)
		}
		return b
	}
	return b
}

// decodeValue reads one value of type t from data starting at off and
// returns it with the new offset. Callers guarantee data holds recordSize(t)
// bytes at off.
func decodeValue(data []byte, off int, t *Type, line int) (Value, int) {
	switch t.Kind {
	case TInteger:
		return intVal(int32(binary.LittleEndian.Uint32(data[off:]))), off + 4
	case TDate:
		return dateVal(int32(binary.LittleEndian.Uint32(data[off:]))), off + 4
	case TEnum:
		ord := int32(binary.LittleEndian.Uint32(data[off:]))
		if ord < 0 || int(ord) >= len(t.Members) {
			raise(FileError, line, "stored ordinal %d is invalid for %s", ord, t.Name)
		}
		return Value{T: t, Data: ord}, off + 4
	case TReal:
		f := math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		return realVal(f), off + 8
	case TBoolean:
		return boolVal(data[off] != 0), off + 1
	case TChar:
		return charVal(rune(binary.LittleEndian.Uint32(data[off:]))), off + 4
	case TArray:
		v := defaultValue(t)
		for _, c := range v.Data.(*ArrayVal).Cells {
			c.V, off = decodeValue(data, off, c.T, line)
		}
		return v, off
	case TRecord:
		v := defaultValue(t)
		for _, c := range v.Data.(*RecordVal).Cells {
			c.V, off = decodeValue(data, off, c.T, line)
		}
		return v, off
	}
	raise(FileError, line, "type %s has no binary encoding", t)
	return Value{}, off
}
