// interp.go: the tree-walking interpreter.
//
// Evaluation is strictly left-to-right and never short-circuits: both sides
// of AND/OR are computed. Arithmetic goes through the checked helpers in
// numeric.go after every operator application. Control-flow statements run
// their bodies in fresh child environments so block-local declarations get
// new cells on every entry. RETURN propagates as an explicit flow result —
// panics are reserved for diagnostics.
//
// Stdout accumulates in a buffer that is surfaced even when a diagnostic
// aborts the run. Stdin is pre-tokenized on whitespace; a consumed token is
// never replayed.
package lucid

import (
	"strconv"
	"strings"
)

// Interp executes one checked program.
type Interp struct {
	prog *Program
	info *CheckInfo
	fs   FileSystem

	out      strings.Builder
	stdin    []string
	stdinPos int

	heap      *Heap
	global    *env
	env       *env
	randState int64

	self     *Object    // receiver during method/constructor execution
	curClass *ClassInfo // class owning the executing method body

	routineEnvs map[*Symbol]*env
}

// env is a runtime frame: one mapping of names to cells per lexical block
// entry, chained to the defining environment.
type env struct {
	parent *env
	cells  map[string]*Cell
}

func newEnv(parent *env) *env {
	return &env{parent: parent, cells: make(map[string]*Cell)}
}

func (e *env) lookup(name string) *Cell {
	for s := e; s != nil; s = s.parent {
		if c, ok := s.cells[name]; ok {
			return c
		}
	}
	return nil
}

// flow carries RETURN out of nested statements.
type flow struct {
	returned bool
	hasVal   bool
	val      Value
}

var flowNone = flow{}

// newInterp wires an interpreter for one checked program. The PRNG state
// starts at 1 for every program.
func newInterp(prog *Program, info *CheckInfo, stdin []string, fs FileSystem) *Interp {
	in := &Interp{
		prog:        prog,
		info:        info,
		fs:          fs,
		stdin:       stdin,
		heap:        newHeap(),
		randState:   1,
		routineEnvs: make(map[*Symbol]*env),
	}
	in.global = newEnv(nil)
	in.env = in.global
	return in
}

func (in *Interp) run() (out string, rerr *Error) {
	defer func() {
		recoverError(recover(), &rerr)
		out = in.out.String()
	}()
	in.execBlock(in.prog.Body)
	return in.out.String(), nil
}

// ---- declarations & blocks -------------------------------------------------

// execBlock creates this block's variables, records routine environments,
// and runs the statements in the current environment.
func (in *Interp) execBlock(b *Block) flow {
	for _, d := range b.Decls {
		switch decl := d.(type) {
		case *VarDecl:
			t := in.info.VarTypes[decl]
			for _, name := range decl.Names {
				in.env.cells[name] = &Cell{T: t, V: defaultValue(t)}
			}
		case *ProcDecl:
			in.routineEnvs[in.info.DeclSyms[decl]] = in.env
		case *FuncDecl:
			in.routineEnvs[in.info.DeclSyms[decl]] = in.env
		}
	}
	for _, s := range b.Stmts {
		if f := in.execStmt(s); f.returned {
			return f
		}
	}
	return flowNone
}

// execChild runs a block in a fresh child environment (fresh cells on each
// entry).
func (in *Interp) execChild(b *Block) flow {
	saved := in.env
	in.env = newEnv(saved)
	f := in.execBlock(b)
	in.env = saved
	return f
}

// ---- statements ------------------------------------------------------------

func (in *Interp) execStmt(s Stmt) flow {
	switch x := s.(type) {
	case *AssignStmt:
		v := in.eval(x.Value)
		storeCell(in.lvalueOf(x.Target), v, x.Line)
	case *IfStmt:
		if in.eval(x.Cond).asBool() {
			return in.execChild(x.Then)
		}
		if x.Else != nil {
			return in.execChild(x.Else)
		}
	case *CaseStmt:
		return in.execCase(x)
	case *ForStmt:
		return in.execFor(x)
	case *WhileStmt:
		for in.eval(x.Cond).asBool() {
			if f := in.execChild(x.Body); f.returned {
				return f
			}
		}
	case *RepeatStmt:
		for {
			if f := in.execChild(x.Body); f.returned {
				return f
			}
			if in.eval(x.Cond).asBool() {
				break
			}
		}
	case *CallStmt:
		switch call := x.Call.(type) {
		case *CallExpr:
			in.evalCall(call)
		case *SuperMethodExpr:
			in.evalSuperMethod(call)
		}
	case *ReturnStmt:
		if x.Value != nil {
			return flow{returned: true, hasVal: true, val: in.eval(x.Value)}
		}
		return flow{returned: true}
	case *InputStmt:
		for _, target := range x.Targets {
			c := in.lvalueOf(target)
			tok := in.nextStdinToken(target.Pos())
			storeCell(c, parseInputToken(tok, c.T, target.Pos()), target.Pos())
		}
	case *OutputStmt:
		var b strings.Builder
		for _, v := range x.Values {
			b.WriteString(formatValue(in.eval(v), v.Pos()))
		}
		b.WriteByte('\n')
		in.out.WriteString(b.String())
	case *SuperStmt:
		in.execSuperCtor(x)
	case *OpenFileStmt:
		in.execOpenFile(x)
	case *CloseFileStmt:
		c := in.lvalueOf(x.File)
		switch h := c.V.Data.(type) {
		case *TextFile:
			h.close(in.fs, x.Line)
		case *RandomFile:
			h.close(in.fs, x.Line)
		}
	case *ReadFileStmt:
		c := in.lvalueOf(x.File)
		target := in.lvalueOf(x.Target)
		raw := c.V.Data.(*TextFile).readLine(x.Line)
		tok := strings.TrimSpace(raw)
		storeCell(target, parseInputToken(tok, target.T, x.Line), x.Line)
	case *WriteFileStmt:
		c := in.lvalueOf(x.File)
		text := formatValue(in.eval(x.Value), x.Value.Pos())
		c.V.Data.(*TextFile).write(text, x.Line)
	case *SeekStmt:
		c := in.lvalueOf(x.File)
		k := in.eval(x.Position).asInt()
		c.V.Data.(*RandomFile).seek(k, x.Line)
	case *GetRecordStmt:
		c := in.lvalueOf(x.File)
		target := in.lvalueOf(x.Target)
		data := c.V.Data.(*RandomFile).get(x.Line)
		v, _ := decodeValue(data, 0, target.T, x.Line)
		storeCell(target, v, x.Line)
	case *PutRecordStmt:
		c := in.lvalueOf(x.File)
		v := in.eval(x.Value)
		c.V.Data.(*RandomFile).put(encodeValue(nil, v), x.Line)
	}
	return flowNone
}

func (in *Interp) execOpenFile(x *OpenFileStmt) {
	c := in.lvalueOf(x.File)
	path := in.eval(x.Path).asStr()
	mode := in.eval(x.Mode).asStr()
	switch h := c.V.Data.(type) {
	case *TextFile:
		h.open(in.fs, path, mode, x.Line)
	case *RandomFile:
		h.openRandom(in.fs, path, mode, recordSize(c.T.Elem), x.Line)
	}
}

func (in *Interp) execCase(x *CaseStmt) flow {
	subject := in.eval(x.Subject)
	for _, br := range x.Branches {
		for _, lab := range br.Labels {
			lo := in.info.LabelVals[lab.Lo]
			if lab.Hi == nil {
				if valueEqual(subject, lo) {
					return in.execChild(br.Body)
				}
				continue
			}
			hi := in.info.LabelVals[lab.Hi]
			if compareValues(subject, lo) >= 0 && compareValues(subject, hi) <= 0 {
				return in.execChild(br.Body)
			}
		}
	}
	if x.Otherwise != nil {
		return in.execChild(x.Otherwise)
	}
	return flowNone
}

func (in *Interp) execFor(x *ForStmt) flow {
	start := in.eval(x.Start).asInt()
	end := in.eval(x.End).asInt()
	step := int32(1)
	if x.Step != nil {
		step = in.eval(x.Step).asInt()
	}
	if step == 0 {
		raise(RuntimeError, x.Line, "FOR step cannot be zero")
	}

	counter := &Cell{T: typeInteger, V: intVal(start), locked: true}
	saved := in.env
	in.env = newEnv(saved)
	in.env.cells[x.Name] = counter
	defer func() { in.env = saved }()

	// The loop walks an int64 so the final increment cannot overflow the
	// counter's range.
	for i := int64(start); (step > 0 && i <= int64(end)) || (step < 0 && i >= int64(end)); i += int64(step) {
		counter.V = intVal(int32(i))
		if f := in.execChild(x.Body); f.returned {
			return f
		}
	}
	return flowNone
}

func (in *Interp) execSuperCtor(x *SuperStmt) {
	base := in.curClass.Base
	owner, ctor := base.nearestCtor()
	if ctor == nil {
		return
	}
	in.invokeRoutine(ctor, x.Args, x.Line, in.self, owner)
}

// ---- expressions -----------------------------------------------------------

func (in *Interp) eval(e Expr) Value {
	switch x := e.(type) {
	case *IntLit:
		return intVal(x.Val)
	case *RealLit:
		return realVal(x.Val)
	case *BoolLit:
		return boolVal(x.Val)
	case *CharLit:
		return charVal(x.Val)
	case *StrLit:
		return strVal(x.Val)
	case *DateLit:
		return dateVal(x.Days)
	case *NullLit:
		return nullVal()
	case *NameExpr:
		return in.evalName(x)
	case *UnaryExpr:
		return in.evalUnary(x)
	case *BinaryExpr:
		return in.evalBinary(x)
	case *AddrExpr:
		c := in.lvalueOf(x.X)
		return Value{T: in.info.ExprTypes[x], Data: in.heap.addressOf(c)}
	case *DerefExpr:
		return in.derefCell(x).V
	case *IndexExpr:
		return in.indexCell(x).V
	case *FieldExpr:
		return in.fieldCell(x).V
	case *CallExpr:
		v, _ := in.evalCall(x)
		return v
	case *SuperMethodExpr:
		v, _ := in.evalSuperMethod(x)
		return v
	case *NewExpr:
		return in.evalNew(x)
	case *EOFExpr:
		c := in.lvalueOf(x.File)
		switch h := c.V.Data.(type) {
		case *TextFile:
			return boolVal(h.eof())
		case *RandomFile:
			return boolVal(h.eof())
		}
	case *SetLit:
		set := newSetVal()
		for _, el := range x.Elems {
			set.add(in.eval(el).asInt())
		}
		return Value{T: in.info.ExprTypes[x], Data: set}
	}
	raise(RuntimeError, e.Pos(), "cannot evaluate expression")
	return Value{}
}

func (in *Interp) evalName(x *NameExpr) Value {
	sym := in.info.Bindings[x]
	switch sym.Kind {
	case SymConst, SymEnumMember:
		return in.info.Consts[sym]
	case SymField:
		return in.self.Cells[x.Name].V
	}
	return in.env.lookup(x.Name).V
}

func (in *Interp) evalUnary(x *UnaryExpr) Value {
	v := in.eval(x.X)
	switch x.Op {
	case "+":
		return v
	case "-":
		if v.T.Kind == TInteger {
			return intVal(negInt(v.asInt(), x.Line))
		}
		return realVal(checkReal(-v.asReal(), x.Line))
	case "NOT":
		return boolVal(!v.asBool())
	}
	raise(RuntimeError, x.Line, "unknown operator %s", x.Op)
	return Value{}
}

func (in *Interp) evalBinary(x *BinaryExpr) Value {
	// Both operands are always computed; AND/OR do not short-circuit.
	l := in.eval(x.L)
	r := in.eval(x.R)
	line := x.Line
	switch x.Op {
	case "+":
		if l.T.Kind == TInteger {
			return intVal(addInt(l.asInt(), r.asInt(), line))
		}
		return realVal(checkReal(l.asReal()+r.asReal(), line))
	case "-":
		if l.T.Kind == TInteger {
			return intVal(subInt(l.asInt(), r.asInt(), line))
		}
		return realVal(checkReal(l.asReal()-r.asReal(), line))
	case "*":
		if l.T.Kind == TInteger {
			return intVal(mulInt(l.asInt(), r.asInt(), line))
		}
		return realVal(checkReal(l.asReal()*r.asReal(), line))
	case "/":
		if l.T.Kind == TInteger {
			return realVal(divReal(float64(l.asInt()), float64(r.asInt()), line))
		}
		return realVal(divReal(l.asReal(), r.asReal(), line))
	case "DIV":
		return intVal(divInt(l.asInt(), r.asInt(), line))
	case "MOD":
		return intVal(modInt(l.asInt(), r.asInt(), line))
	case "&":
		ls, _ := concatText(l)
		rs, _ := concatText(r)
		return strVal(ls + rs)
	case "AND":
		return boolVal(l.asBool() && r.asBool())
	case "OR":
		return boolVal(l.asBool() || r.asBool())
	case "=":
		return boolVal(valueEqual(l, r))
	case "<>":
		return boolVal(!valueEqual(l, r))
	case "<", "<=", ">", ">=":
		return boolVal(relHolds(x.Op, compareValues(l, r)))
	case "IN":
		return boolVal(r.Data.(*SetVal).has(l.asInt()))
	case "UNION", "INTERSECT", "DIFF":
		return in.evalSetOp(x.Op, l, r)
	}
	raise(RuntimeError, line, "unknown operator %s", x.Op)
	return Value{}
}

func (in *Interp) evalSetOp(op string, l, r Value) Value {
	ls := l.Data.(*SetVal)
	rs := r.Data.(*SetVal)
	out := newSetVal()
	switch op {
	case "UNION":
		for m := range ls.members {
			out.add(m)
		}
		for m := range rs.members {
			out.add(m)
		}
	case "INTERSECT":
		for m := range ls.members {
			if rs.has(m) {
				out.add(m)
			}
		}
	case "DIFF":
		for m := range ls.members {
			if !rs.has(m) {
				out.add(m)
			}
		}
	}
	return Value{T: l.T, Data: out}
}

func (in *Interp) evalNew(x *NewExpr) Value {
	t := in.info.ExprTypes[x]
	if t.Kind == TClass {
		cls := in.info.Classes[t.Name]
		oid := in.heap.newObject(cls)
		if owner, ctor := cls.nearestCtor(); ctor != nil {
			in.invokeRoutine(ctor, x.Args, x.Line, in.heap.objs[oid], owner)
		}
		return Value{T: t, Data: oid}
	}
	return Value{T: t, Data: in.heap.alloc(t.Elem)}
}

// ---- calls -----------------------------------------------------------------

func (in *Interp) evalCall(x *CallExpr) (Value, bool) {
	switch callee := x.Callee.(type) {
	case *NameExpr:
		sym := in.info.Bindings[callee]
		if sym == nil {
			// Built-ins are never bound; the checker typed the call.
			b := builtinByName(callee.Name)
			return b.eval(in, x), true
		}
		if sym.Kind == SymMethod {
			return in.dispatchMethod(in.self, sym.Name, x)
		}
		return in.invokeRoutine(sym, x.Args, x.Line, nil, nil)
	case *FieldExpr:
		recv := in.eval(callee.Base)
		obj := in.heap.object(recv.Data.(int), x.Line)
		return in.dispatchMethod(obj, callee.Name, x)
	}
	raise(RuntimeError, x.Line, "cannot call expression")
	return Value{}, false
}

// dispatchMethod locates a method by walking the receiver's runtime class
// chain and invokes it. Access is re-checked here because dynamic dispatch
// can reach members the static checker never saw (e.g. a private method of
// a base class found through a derived receiver).
func (in *Interp) dispatchMethod(obj *Object, name string, x *CallExpr) (Value, bool) {
	m := obj.Class.findMethod(name)
	if m == nil {
		raise(NameError, x.Line, "class %q has no method %q", obj.Class.Name, name)
	}
	if m.Access == Private && (in.curClass == nil || in.curClass.Name != m.Owner) {
		raise(AccessError, x.Line, "method %q is private to class %q", name, m.Owner)
	}
	return in.invokeRoutine(m, x.Args, x.Line, obj, in.info.Classes[m.Owner])
}

func (in *Interp) evalSuperMethod(x *SuperMethodExpr) (Value, bool) {
	m := in.info.Bindings[x]
	return in.invokeRoutine(m, x.Args, x.Line, in.self, in.info.Classes[m.Owner])
}

// invokeRoutine binds arguments left-to-right (copying BYVAL values,
// aliasing BYREF cells), runs the body, and returns the function result.
// self/owner are non-nil for methods and constructors.
func (in *Interp) invokeRoutine(sym *Symbol, args []Expr, line int, self *Object, owner *ClassInfo) (Value, bool) {
	cells := make([]*Cell, len(args))
	for i, arg := range args {
		p := sym.Params[i]
		if p.ByRef {
			cells[i] = in.lvalueOf(arg)
		} else {
			cells[i] = &Cell{T: p.Type, V: copyValue(coerceValue(in.eval(arg), p.Type))}
		}
	}

	var params []*Param
	var body *Block
	switch d := sym.Decl.(type) {
	case *ProcDecl:
		params = d.Params
		body = d.Body
	case *FuncDecl:
		params = d.Params
		body = d.Body
	case *CtorDecl:
		params = d.Params
		body = d.Body
	}

	parent := in.global
	if self == nil {
		if def, ok := in.routineEnvs[sym]; ok {
			parent = def
		}
	}
	frame := newEnv(parent)
	for i, p := range params {
		frame.cells[p.Name] = cells[i]
	}

	savedEnv, savedSelf, savedClass := in.env, in.self, in.curClass
	in.env = frame
	if self != nil {
		in.self, in.curClass = self, owner
	}
	f := in.execBlock(body)
	in.env, in.self, in.curClass = savedEnv, savedSelf, savedClass

	if sym.Kind == SymFunc || (sym.Kind == SymMethod && sym.IsFunc) {
		if !f.hasVal {
			raise(RuntimeError, line, "function %q ended without RETURN", sym.Name)
		}
		return coerceValue(f.val, sym.Type), true
	}
	return Value{}, false
}

// ---- lvalues ---------------------------------------------------------------

// lvalueOf resolves an expression to the cell it designates.
func (in *Interp) lvalueOf(e Expr) *Cell {
	switch x := e.(type) {
	case *NameExpr:
		sym := in.info.Bindings[x]
		if sym.Kind == SymField {
			return in.self.Cells[x.Name]
		}
		return in.env.lookup(x.Name)
	case *IndexExpr:
		return in.indexCell(x)
	case *FieldExpr:
		return in.fieldCell(x)
	case *DerefExpr:
		return in.derefCell(x)
	}
	raise(TypeError, e.Pos(), "expression is not assignable")
	return nil
}

func (in *Interp) indexCell(x *IndexExpr) *Cell {
	av := in.eval(x.Base).Data.(*ArrayVal)
	indexes := make([]int32, len(x.Indexes))
	for i, idx := range x.Indexes {
		indexes[i] = in.eval(idx).asInt()
	}
	return av.Cells[av.offset(indexes, x.Line)]
}

func (in *Interp) fieldCell(x *FieldExpr) *Cell {
	base := in.eval(x.Base)
	switch base.T.Kind {
	case TRecord:
		rv := base.Data.(*RecordVal)
		return rv.Cells[rv.fieldIndex(x.Name)]
	case TClass:
		obj := in.heap.object(base.Data.(int), x.Line)
		f := obj.Class.findField(x.Name)
		if f != nil && f.Access == Private && (in.curClass == nil || in.curClass.Name != f.Owner) {
			raise(AccessError, x.Line, "field %q is private to class %q", x.Name, f.Owner)
		}
		return obj.Cells[x.Name]
	}
	raise(TypeError, x.Line, "field access requires a record or class")
	return nil
}

func (in *Interp) derefCell(x *DerefExpr) *Cell {
	p := in.eval(x.X)
	return in.heap.cellAt(p.Data.(int), x.Line)
}

// ---- stdin -----------------------------------------------------------------

func (in *Interp) nextStdinToken(line int) string {
	if in.stdinPos >= len(in.stdin) {
		raise(RuntimeError, line, "input exhausted")
	}
	tok := in.stdin[in.stdinPos]
	in.stdinPos++
	return tok
}

// parseInputToken parses one whitespace-delimited token (or one trimmed
// READFILE line) according to the target type. READFILE and INPUT share
// this path so both produce identical results for the same logical token.
func parseInputToken(tok string, t *Type, line int) Value {
	switch t.Kind {
	case TInteger:
		n, ok := parseIntToken(tok)
		if !ok {
			raise(RuntimeError, line, "invalid INTEGER input %q", tok)
		}
		if n < minInt32 || n > maxInt32 {
			raise(RangeError, line, "INTEGER input %q out of range", tok)
		}
		return intVal(int32(n))
	case TReal:
		f, ok := parseRealToken(tok)
		if !ok {
			raise(RuntimeError, line, "invalid REAL input %q", tok)
		}
		return realVal(checkReal(f, line))
	case TBoolean:
		switch strings.ToUpper(tok) {
		case "TRUE":
			return boolVal(true)
		case "FALSE":
			return boolVal(false)
		}
		raise(RuntimeError, line, "invalid BOOLEAN input %q", tok)
	case TChar:
		r := []rune(tok)
		if len(r) != 1 {
			raise(RuntimeError, line, "invalid CHAR input %q", tok)
		}
		return charVal(r[0])
	case TString:
		return strVal(tok)
	case TDate:
		return dateVal(parseDate(tok, line))
	case TEnum:
		for ord, m := range t.Members {
			if m == tok {
				return Value{T: t, Data: int32(ord)}
			}
		}
		raise(RuntimeError, line, "%q is not a member of %s", tok, t.Name)
	}
	raise(TypeError, line, "cannot read a %s from input", t)
	return Value{}
}

// parseIntToken accepts an optional sign followed by digits only.
func parseIntToken(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	i := 0
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		i++
	}
	if i == len(s) {
		return 0, false
	}
	var n int64
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		if n < 1<<40 {
			n = n*10 + int64(c-'0')
		}
	}
	if neg {
		n = -n
	}
	return n, true
}

// parseRealToken accepts sign? digits ('.' digits)? ([eE] sign? digits)?.
func parseRealToken(s string) (float64, bool) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0, false
	}
	if i < len(s) && s[i] == '.' {
		i++
		fs := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == fs {
			return 0, false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		es := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == es {
			return 0, false
		}
	}
	if i != len(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
