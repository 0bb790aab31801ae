// types.go: semantic type representations and their relations.
//
// The checker resolves every type denotation (and every alias) down to one
// of these. Two types are equal iff their kinds match and their components
// match recursively: array bounds and element, record field names/types in
// order, enum name, set base name, pointer target, class name. There are no
// implicit conversions anywhere; assignability is equality plus the two
// sanctioned exceptions (NULL into pointer/class slots, derived class into
// base — see checker.assignable).
package lucid

import (
	"fmt"
	"strings"
)

// TypeKind tags a semantic type.
type TypeKind int

const (
	TInteger TypeKind = iota
	TReal
	TBoolean
	TChar
	TString
	TDate
	TArray
	TRecord
	TEnum
	TSet
	TPointer
	TTextFile
	TRandomFile
	TClass
	TNull
)

// Bounds is one inclusive array dimension.
type Bounds struct {
	Low, High int32
}

func (b Bounds) size() int { return int(b.High) - int(b.Low) + 1 }

// FieldType is one record field.
type FieldType struct {
	Name string
	Type *Type
}

// Type is a resolved semantic type. Which fields are meaningful depends on
// Kind: Elem for arrays/pointers/random-files, Bounds for arrays, Fields
// for records, Members+Name for enums, Name for sets (base enum), classes.
type Type struct {
	Kind    TypeKind
	Name    string
	Elem    *Type
	Bounds  []Bounds
	Fields  []FieldType
	Members []string
}

var (
	typeInteger = &Type{Kind: TInteger}
	typeReal    = &Type{Kind: TReal}
	typeBoolean = &Type{Kind: TBoolean}
	typeChar    = &Type{Kind: TChar}
	typeString  = &Type{Kind: TString}
	typeDate    = &Type{Kind: TDate}
	typeNull    = &Type{Kind: TNull}
)

func (t *Type) String() string {
	switch t.Kind {
	case TInteger:
		return "INTEGER"
	case TReal:
		return "REAL"
	case TBoolean:
		return "BOOLEAN"
	case TChar:
		return "CHAR"
	case TString:
		return "STRING"
	case TDate:
		return "DATE"
	case TArray:
		var dims []string
		for _, b := range t.Bounds {
			dims = append(dims, fmt.Sprintf("%d:%d", b.Low, b.High))
		}
		return fmt.Sprintf("ARRAY[%s] OF %s", strings.Join(dims, ","), t.Elem)
	case TRecord:
		if t.Name != "" {
			return t.Name
		}
		return "RECORD"
	case TEnum:
		return t.Name
	case TSet:
		return "SET OF " + t.Name
	case TPointer:
		if t.Elem == nil {
			return "POINTER"
		}
		return "POINTER TO " + t.Elem.String()
	case TTextFile:
		return "TEXTFILE"
	case TRandomFile:
		if t.Elem == nil {
			return "RANDOMFILE"
		}
		return "RANDOMFILE OF " + t.Elem.String()
	case TClass:
		return t.Name
	case TNull:
		return "NULL"
	}
	return "?"
}

// typeEqual is the structural equality of the static type system.
func typeEqual(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TInteger, TReal, TBoolean, TChar, TString, TDate, TTextFile, TNull:
		return true
	case TArray:
		if len(a.Bounds) != len(b.Bounds) {
			return false
		}
		for i := range a.Bounds {
			if a.Bounds[i] != b.Bounds[i] {
				return false
			}
		}
		return typeEqual(a.Elem, b.Elem)
	case TRecord:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !typeEqual(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	case TEnum:
		return a.Name == b.Name
	case TSet:
		return a.Name == b.Name
	case TPointer:
		return typeEqual(a.Elem, b.Elem)
	case TRandomFile:
		return typeEqual(a.Elem, b.Elem)
	case TClass:
		return a.Name == b.Name
	}
	return false
}

// isOrdered reports whether < <= > >= apply to the type.
func isOrdered(t *Type) bool {
	switch t.Kind {
	case TInteger, TReal, TChar, TString, TDate, TEnum:
		return true
	}
	return false
}

// isEquatable reports whether = <> apply to the type.
func isEquatable(t *Type) bool {
	switch t.Kind {
	case TInteger, TReal, TBoolean, TChar, TString, TDate, TEnum:
		return true
	}
	return false
}

// isCaseType reports whether the type may be a CASE scrutinee.
func isCaseType(t *Type) bool {
	switch t.Kind {
	case TInteger, TChar, TEnum, TDate:
		return true
	}
	return false
}

// isFileType reports text or random file.
func isFileType(t *Type) bool {
	return t.Kind == TTextFile || t.Kind == TRandomFile
}

// fixedSize reports whether a type has a fixed binary encoding, i.e. may
// appear (recursively) in a random-file record.
func fixedSize(t *Type) bool {
	switch t.Kind {
	case TInteger, TReal, TBoolean, TChar, TDate, TEnum:
		return true
	case TArray:
		return fixedSize(t.Elem)
	case TRecord:
		for _, f := range t.Fields {
			if !fixedSize(f.Type) {
				return false
			}
		}
		return true
	}
	return false
}

// recordSize is the exact byte length of a fixed-size type's encoding.
// Callers must have validated fixedSize first.
func recordSize(t *Type) int {
	switch t.Kind {
	case TInteger, TChar, TDate, TEnum:
		return 4
	case TReal:
		return 8
	case TBoolean:
		return 1
	case TArray:
		n := recordSize(t.Elem)
		for _, b := range t.Bounds {
			n *= b.size()
		}
		return n
	case TRecord:
		n := 0
		for _, f := range t.Fields {
			n += recordSize(f.Type)
		}
		return n
	}
	return 0
}
