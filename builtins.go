// builtins.go: the standard library.
//
// Every built-in is total: it returns a value or raises a typed error.
// Each entry carries a static check (used by the checker to type the call)
// and an evaluator (used by the interpreter). Names are matched
// case-insensitively, but only after user declarations fail to resolve, so
// programs may shadow a built-in with their own routine.
package lucid

import "strings"

type builtin struct {
	name  string
	check func(c *Checker, x *CallExpr) *Type
	eval  func(in *Interp, x *CallExpr) Value
}

var builtins = map[string]*builtin{}

func register(name string, check func(c *Checker, x *CallExpr) *Type, eval func(in *Interp, x *CallExpr) Value) {
	builtins[name] = &builtin{name: name, check: check, eval: eval}
}

func builtinByName(name string) *builtin {
	return builtins[strings.ToUpper(name)]
}

// wantArgKinds types all arguments and requires the given kinds in order.
func wantArgKinds(c *Checker, x *CallExpr, name string, kinds ...TypeKind) []*Type {
	if len(x.Args) != len(kinds) {
		raise(TypeError, x.Line, "%s expects %d arguments, got %d", name, len(kinds), len(x.Args))
	}
	out := make([]*Type, len(x.Args))
	for i, arg := range x.Args {
		t := c.typeOf(arg)
		if t.Kind != kinds[i] {
			raise(TypeError, arg.Pos(), "%s argument %d must be %s, found %s", name, i+1, &Type{Kind: kinds[i]}, t)
		}
		out[i] = t
	}
	return out
}

func init() {
	registerStringBuiltins()
	registerConversionBuiltins()
	registerEnumSetBuiltins()
	registerRandomBuiltin()
}

func registerStringBuiltins() {
	register("LENGTH",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "LENGTH", TString)
			return typeInteger
		},
		func(in *Interp, x *CallExpr) Value {
			s := []rune(in.eval(x.Args[0]).asStr())
			return intVal(int32(len(s)))
		})

	register("RIGHT",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "RIGHT", TString, TInteger)
			return typeString
		},
		func(in *Interp, x *CallExpr) Value {
			s := []rune(in.eval(x.Args[0]).asStr())
			n := in.eval(x.Args[1]).asInt()
			if n < 0 || int(n) > len(s) {
				raise(RangeError, x.Line, "RIGHT count %d out of range for length %d", n, len(s))
			}
			return strVal(string(s[len(s)-int(n):]))
		})

	register("MID",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "MID", TString, TInteger, TInteger)
			return typeString
		},
		func(in *Interp, x *CallExpr) Value {
			s := []rune(in.eval(x.Args[0]).asStr())
			start := in.eval(x.Args[1]).asInt()
			n := in.eval(x.Args[2]).asInt()
			if n == 0 {
				return strVal("")
			}
			if start < 1 || n < 0 || int(start)+int(n)-1 > len(s) {
				raise(RangeError, x.Line, "MID(%d, %d) out of range for length %d", start, n, len(s))
			}
			return strVal(string(s[start-1 : int(start-1)+int(n)]))
		})

	register("LCASE",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "LCASE", TString)
			return typeString
		},
		func(in *Interp, x *CallExpr) Value {
			return strVal(asciiCase(in.eval(x.Args[0]).asStr(), false))
		})

	register("UCASE",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "UCASE", TString)
			return typeString
		},
		func(in *Interp, x *CallExpr) Value {
			return strVal(asciiCase(in.eval(x.Args[0]).asStr(), true))
		})
}

// asciiCase folds A–Z / a–z only; everything else passes through.
func asciiCase(s string, upper bool) string {
	b := []byte(s)
	for i, ch := range b {
		if upper && ch >= 'a' && ch <= 'z' {
			b[i] = ch - 'a' + 'A'
		} else if !upper && ch >= 'A' && ch <= 'Z' {
			b[i] = ch - 'A' + 'a'
		}
	}
	return string(b)
}

func registerConversionBuiltins() {
	register("INT",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "INT", TReal)
			return typeInteger
		},
		func(in *Interp, x *CallExpr) Value {
			return intVal(truncReal(in.eval(x.Args[0]).asReal(), x.Line))
		})

	register("REAL",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "REAL", TInteger)
			return typeReal
		},
		func(in *Interp, x *CallExpr) Value {
			return realVal(float64(in.eval(x.Args[0]).asInt()))
		})

	register("STRING",
		func(c *Checker, x *CallExpr) *Type {
			if len(x.Args) != 1 {
				raise(TypeError, x.Line, "STRING expects 1 argument, got %d", len(x.Args))
			}
			t := c.typeOf(x.Args[0])
			if !outputtable(t) {
				raise(TypeError, x.Args[0].Pos(), "STRING cannot convert %s", t)
			}
			return typeString
		},
		func(in *Interp, x *CallExpr) Value {
			return strVal(formatValue(in.eval(x.Args[0]), x.Line))
		})

	register("CHAR",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "CHAR", TInteger)
			return typeChar
		},
		func(in *Interp, x *CallExpr) Value {
			n := in.eval(x.Args[0]).asInt()
			if n < 0 || n > 127 {
				raise(RangeError, x.Line, "CHAR code %d out of range 0..127", n)
			}
			return charVal(rune(n))
		})

	register("BOOLEAN",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "BOOLEAN", TString)
			return typeBoolean
		},
		func(in *Interp, x *CallExpr) Value {
			s := strings.ToUpper(in.eval(x.Args[0]).asStr())
			switch s {
			case "TRUE":
				return boolVal(true)
			case "FALSE":
				return boolVal(false)
			}
			raise(RangeError, x.Line, "BOOLEAN requires \"TRUE\" or \"FALSE\"")
			return Value{}
		})

	register("DATE",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "DATE", TString)
			return typeDate
		},
		func(in *Interp, x *CallExpr) Value {
			return dateVal(parseDate(in.eval(x.Args[0]).asStr(), x.Line))
		})
}

func registerEnumSetBuiltins() {
	register("ORD",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "ORD", TEnum)
			return typeInteger
		},
		func(in *Interp, x *CallExpr) Value {
			return intVal(in.eval(x.Args[0]).asInt())
		})

	// ENUMVALUE(TypeName, k): the first argument is a compile-time enum
	// type name, never evaluated; the checker records the resolved type.
	register("ENUMVALUE",
		func(c *Checker, x *CallExpr) *Type {
			if len(x.Args) != 2 {
				raise(TypeError, x.Line, "ENUMVALUE expects 2 arguments, got %d", len(x.Args))
			}
			name, ok := x.Args[0].(*NameExpr)
			if !ok {
				raise(TypeError, x.Args[0].Pos(), "ENUMVALUE requires an enumeration type name")
			}
			t := c.resolveNamed(name.Name, name.Line)
			if t.Kind != TEnum {
				raise(TypeError, name.Line, "%q is not an enumeration", name.Name)
			}
			c.info.ExprTypes[name] = t
			c.want(x.Args[1], typeInteger, "ENUMVALUE ordinal")
			return t
		},
		func(in *Interp, x *CallExpr) Value {
			t := in.info.ExprTypes[x.Args[0]]
			k := in.eval(x.Args[1]).asInt()
			if k < 0 || int(k) >= len(t.Members) {
				raise(RangeError, x.Line, "ordinal %d out of range for %s", k, t.Name)
			}
			return Value{T: t, Data: k}
		})

	register("SIZE",
		func(c *Checker, x *CallExpr) *Type {
			wantArgKinds(c, x, "SIZE", TSet)
			return typeInteger
		},
		func(in *Interp, x *CallExpr) Value {
			s := in.eval(x.Args[0]).Data.(*SetVal)
			return intVal(int32(len(s.members)))
		})
}

// RAND is the deterministic LCG pinned by the language: state starts at 1,
// state <- (1103515245*state + 12345) mod 2^31, result state/2^31.
func registerRandomBuiltin() {
	register("RAND",
		func(c *Checker, x *CallExpr) *Type {
			if len(x.Args) != 0 {
				raise(TypeError, x.Line, "RAND expects no arguments")
			}
			return typeReal
		},
		func(in *Interp, x *CallExpr) Value {
			in.randState = (1103515245*in.randState + 12345) % (1 << 31)
			return realVal(float64(in.randState) / (1 << 31))
		})
}
