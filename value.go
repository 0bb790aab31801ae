// value.go: runtime values, cells, the heap, and lvalue handles.
//
// A Value is a semantic type plus a payload. Composites (arrays, records)
// own []*Cell so that element and field lvalues alias their container;
// assignment deep-copies them. Pointers and class references are integer
// ids into the heap and copy by reference. The heap lives for the whole
// program run; nothing is reclaimed before termination.
//
// Payloads by kind:
//
//	TInteger    int32
//	TReal       float64
//	TBoolean    bool
//	TChar       rune
//	TString     string
//	TDate       int32 (day number, day 0 = 0001-01-01)
//	TEnum       int32 (ordinal)
//	TArray      *ArrayVal
//	TRecord     *RecordVal
//	TSet        *SetVal
//	TPointer    int (heap address, 0 = NULL)
//	TClass      int (object id, 0 = NULL)
//	TTextFile   *TextFile
//	TRandomFile *RandomFile
//	TNull       nil
package lucid

// Value is the universal runtime carrier.
type Value struct {
	T    *Type
	Data any
}

func intVal(v int32) Value     { return Value{T: typeInteger, Data: v} }
func realVal(v float64) Value  { return Value{T: typeReal, Data: v} }
func boolVal(v bool) Value     { return Value{T: typeBoolean, Data: v} }
func charVal(v rune) Value     { return Value{T: typeChar, Data: v} }
func strVal(v string) Value    { return Value{T: typeString, Data: v} }
func dateVal(days int32) Value { return Value{T: typeDate, Data: days} }
func nullVal() Value           { return Value{T: typeNull, Data: nil} }

func (v Value) asInt() int32    { return v.Data.(int32) }
func (v Value) asReal() float64 { return v.Data.(float64) }
func (v Value) asBool() bool    { return v.Data.(bool) }
func (v Value) asChar() rune    { return v.Data.(rune) }
func (v Value) asStr() string   { return v.Data.(string) }

// Cell is one storage slot. locked marks FOR counters for the duration of
// their loop body.
type Cell struct {
	T      *Type
	V      Value
	locked bool
}

// ArrayVal stores elements flattened in row-major order.
type ArrayVal struct {
	T     *Type // the array type (bounds + elem)
	Cells []*Cell
}

// offset maps an index tuple to the flat cell position, checking every
// dimension against its inclusive bounds.
func (a *ArrayVal) offset(indexes []int32, line int) int {
	off := 0
	for d, b := range a.T.Bounds {
		i := indexes[d]
		if i < b.Low || i > b.High {
			raise(RangeError, line, "index %d out of bounds %d:%d", i, b.Low, b.High)
		}
		off = off*b.size() + int(i-b.Low)
	}
	return off
}

// RecordVal stores field cells parallel to its type's field list.
type RecordVal struct {
	T     *Type
	Cells []*Cell
}

func (r *RecordVal) fieldIndex(name string) int {
	for i, f := range r.T.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// SetVal is a set of enum ordinals.
type SetVal struct {
	members map[int32]struct{}
}

func newSetVal() *SetVal { return &SetVal{members: make(map[int32]struct{})} }

func (s *SetVal) has(ord int32) bool {
	_, ok := s.members[ord]
	return ok
}

func (s *SetVal) add(ord int32) { s.members[ord] = struct{}{} }

func (s *SetVal) clone() *SetVal {
	out := newSetVal()
	for m := range s.members {
		out.members[m] = struct{}{}
	}
	return out
}

// Object is a class instance: its runtime class plus one cell per field,
// laid out base-first.
type Object struct {
	Class *ClassInfo
	Cells map[string]*Cell
}

// Heap owns pointer targets and class objects. Addresses and object ids
// start at 1; 0 is NULL. addrOf memoizes @ of an existing cell so repeated
// address-of yields the same address.
type Heap struct {
	cells    map[int]*Cell
	addrOf   map[*Cell]int
	objs     map[int]*Object
	nextAddr int
	nextOid  int
}

func newHeap() *Heap {
	return &Heap{
		cells:    make(map[int]*Cell),
		addrOf:   make(map[*Cell]int),
		objs:     make(map[int]*Object),
		nextAddr: 1,
		nextOid:  1,
	}
}

// alloc creates a fresh pointer target (NEW <Type>).
func (h *Heap) alloc(t *Type) int {
	c := &Cell{T: t, V: defaultValue(t)}
	addr := h.nextAddr
	h.nextAddr++
	h.cells[addr] = c
	h.addrOf[c] = addr
	return addr
}

// addressOf returns the (memoized) address of an existing cell.
func (h *Heap) addressOf(c *Cell) int {
	if addr, ok := h.addrOf[c]; ok {
		return addr
	}
	addr := h.nextAddr
	h.nextAddr++
	h.cells[addr] = c
	h.addrOf[c] = addr
	return addr
}

func (h *Heap) cellAt(addr int, line int) *Cell {
	if addr == 0 {
		raise(RuntimeError, line, "Null dereference.")
	}
	c, ok := h.cells[addr]
	if !ok {
		raise(RuntimeError, line, "invalid pointer")
	}
	return c
}

func (h *Heap) newObject(cls *ClassInfo) int {
	obj := &Object{Class: cls, Cells: make(map[string]*Cell)}
	for _, f := range cls.allFields() {
		obj.Cells[f.Name] = &Cell{T: f.Type, V: defaultValue(f.Type)}
	}
	oid := h.nextOid
	h.nextOid++
	h.objs[oid] = obj
	return oid
}

func (h *Heap) object(oid int, line int) *Object {
	if oid == 0 {
		raise(RuntimeError, line, "Null dereference.")
	}
	obj, ok := h.objs[oid]
	if !ok {
		raise(RuntimeError, line, "invalid object reference")
	}
	return obj
}

// defaultValue builds the block-entry default for a type: zero numbers,
// FALSE, "\x00", "", 0001-01-01, recursively defaulted composites, the
// first enum member, the empty set, NULL pointers and references, closed
// file handles.
func defaultValue(t *Type) Value {
	switch t.Kind {
	case TInteger:
		return intVal(0)
	case TReal:
		return realVal(0)
	case TBoolean:
		return boolVal(false)
	case TChar:
		return charVal(0)
	case TString:
		return strVal("")
	case TDate:
		return dateVal(0)
	case TEnum:
		return Value{T: t, Data: int32(0)}
	case TArray:
		n := 1
		for _, b := range t.Bounds {
			n *= b.size()
		}
		av := &ArrayVal{T: t, Cells: make([]*Cell, n)}
		for i := range av.Cells {
			av.Cells[i] = &Cell{T: t.Elem, V: defaultValue(t.Elem)}
		}
		return Value{T: t, Data: av}
	case TRecord:
		rv := &RecordVal{T: t, Cells: make([]*Cell, len(t.Fields))}
		for i, f := range t.Fields {
			rv.Cells[i] = &Cell{T: f.Type, V: defaultValue(f.Type)}
		}
		return Value{T: t, Data: rv}
	case TSet:
		return Value{T: t, Data: newSetVal()}
	case TPointer:
		return Value{T: t, Data: 0}
	case TClass:
		return Value{T: t, Data: 0}
	case TTextFile:
		return Value{T: t, Data: &TextFile{}}
	case TRandomFile:
		return Value{T: t, Data: &RandomFile{}}
	}
	return nullVal()
}

// copyValue implements assignment semantics: deep copy for arrays, records
// and sets; everything else (including pointers and class references)
// copies the payload.
func copyValue(v Value) Value {
	switch v.T.Kind {
	case TArray:
		src := v.Data.(*ArrayVal)
		dst := &ArrayVal{T: src.T, Cells: make([]*Cell, len(src.Cells))}
		for i, c := range src.Cells {
			dst.Cells[i] = &Cell{T: c.T, V: copyValue(c.V)}
		}
		return Value{T: v.T, Data: dst}
	case TRecord:
		src := v.Data.(*RecordVal)
		dst := &RecordVal{T: src.T, Cells: make([]*Cell, len(src.Cells))}
		for i, c := range src.Cells {
			dst.Cells[i] = &Cell{T: c.T, V: copyValue(c.V)}
		}
		return Value{T: v.T, Data: dst}
	case TSet:
		return Value{T: v.T, Data: v.Data.(*SetVal).clone()}
	}
	return v
}

// valueEqual compares two values of one equatable type.
func valueEqual(a, b Value) bool {
	switch a.T.Kind {
	case TInteger, TDate, TEnum:
		return a.asInt() == b.asInt()
	case TReal:
		return a.asReal() == b.asReal()
	case TBoolean:
		return a.asBool() == b.asBool()
	case TChar:
		return a.asChar() == b.asChar()
	case TString:
		return a.asStr() == b.asStr()
	}
	return false
}

// compareValues orders two values of one ordered type: -1, 0 or 1.
// Char and String compare by code point, Date chronologically, Enum by
// ordinal.
func compareValues(a, b Value) int {
	switch a.T.Kind {
	case TInteger, TDate, TEnum:
		return cmpOrdered(a.asInt(), b.asInt())
	case TReal:
		return cmpOrdered(a.asReal(), b.asReal())
	case TChar:
		return cmpOrdered(a.asChar(), b.asChar())
	case TString:
		return cmpOrdered(a.asStr(), b.asStr())
	}
	return 0
}

func cmpOrdered[T int32 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// formatValue renders a scalar per the OUTPUT conversion rules. Composite
// types are refused (the checker already rejects them; this is the runtime
// backstop).
func formatValue(v Value, line int) string {
	switch v.T.Kind {
	case TInteger:
		return formatInt(v.asInt())
	case TReal:
		return formatReal(v.asReal())
	case TBoolean:
		if v.asBool() {
			return "TRUE"
		}
		return "FALSE"
	case TChar:
		return string(v.asChar())
	case TString:
		return v.asStr()
	case TDate:
		return formatDate(v.Data.(int32))
	}
	raise(TypeError, line, "%s value cannot be converted to text", v.T)
	return ""
}

func formatInt(v int32) string {
	// strconv would do; kept local so every OUTPUT path funnels through
	// this file.
	if v == 0 {
		return "0"
	}
	neg := v < 0
	n := int64(v)
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ---- lvalue handles --------------------------------------------------------

// Every place a program can write — a local, an array slot, a record or
// object field, a pointer target — is backed by a *Cell owned by its
// container, so repeated lookups through the same path alias the same
// storage. Resolving an expression to its cell is the interpreter's
// lvalueOf; storeCell is the uniform set, and reads take the cell's V.

func storeCell(c *Cell, v Value, line int) {
	if c.locked {
		raise(AccessError, line, "cannot assign to loop counter")
	}
	c.V = copyValue(coerceValue(v, c.T))
}

// coerceValue gives the bare NULL literal its destination's pointer or
// class type (payload 0), so every stored reference value carries an
// address payload.
func coerceValue(v Value, t *Type) Value {
	if v.T.Kind == TNull && (t.Kind == TPointer || t.Kind == TClass) {
		return Value{T: t, Data: 0}
	}
	return v
}
