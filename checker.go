// checker.go: symbol binding and static type checking.
//
// Each block is processed in two phases. The first pre-declares types,
// classes, procedures and functions so bodies can refer to each other
// regardless of textual order (mutual recursion); class field/method tables
// are filled and enum members become constants. The second phase visits
// declarations in order — creating variables and folding constants — and
// then checks the statements.
//
// The checker populates CheckInfo: a type for every expression it
// processes, a binding for every name that resolves to a declared symbol
// (built-in callees are not bound), folded constant and case-label
// values, and the class table. Failures raise *Error (panic) and Check
// recovers them.
package lucid

// CheckInfo is everything the interpreter needs besides the AST itself.
type CheckInfo struct {
	ExprTypes map[Expr]*Type
	Bindings  map[Expr]*Symbol
	Consts    map[*Symbol]Value
	LabelVals map[Expr]Value    // folded case-label literals
	DeclSyms  map[Decl]*Symbol  // routine declaration → its symbol
	VarTypes  map[*VarDecl]*Type // variable declaration → resolved type
	Classes   map[string]*ClassInfo
	Global    *Scope
}

// Checker walks the AST once, binding and typing as it goes.
type Checker struct {
	info      *CheckInfo
	scope     *Scope
	curClass  *ClassInfo
	retType   *Type // return type inside a function body, nil otherwise
	inRoutine bool
	inCtor    bool
	shells    map[string]*Type
}

// Check binds and type-checks a parsed program.
func Check(prog *Program) (info *CheckInfo, cerr *Error) {
	c := &Checker{
		info: &CheckInfo{
			ExprTypes: make(map[Expr]*Type),
			Bindings:  make(map[Expr]*Symbol),
			Consts:    make(map[*Symbol]Value),
			LabelVals: make(map[Expr]Value),
			DeclSyms:  make(map[Decl]*Symbol),
			VarTypes:  make(map[*VarDecl]*Type),
			Classes:   make(map[string]*ClassInfo),
		},
		shells: make(map[string]*Type),
	}
	c.info.Global = newScope(nil)
	c.scope = c.info.Global

	defer func() { recoverError(recover(), &cerr) }()
	c.checkBlock(prog.Body, true)
	return c.info, nil
}

func (c *Checker) pushScope() *Scope {
	c.scope = newScope(c.scope)
	return c.scope
}

func (c *Checker) popScope() { c.scope = c.scope.parent }

// ---- blocks ----------------------------------------------------------------

func (c *Checker) checkBlock(b *Block, topLevel bool) {
	// Phase 1a: register type and class names.
	for _, d := range b.Decls {
		switch decl := d.(type) {
		case *TypeDecl:
			c.scope.define(&Symbol{Kind: SymType, Name: decl.Name, Decl: decl}, decl.Line)
		case *ClassDecl:
			if !topLevel {
				raise(SyntaxError, decl.Line, "classes must be declared at program level")
			}
			t := &Type{Kind: TClass, Name: decl.Name}
			c.scope.define(&Symbol{Kind: SymClass, Name: decl.Name, Type: t, Decl: decl}, decl.Line)
			c.info.Classes[decl.Name] = &ClassInfo{Name: decl.Name, Type: t, Decl: decl}
		}
	}

	// Phase 1b: resolve type definitions and fold constants, interleaved
	// in declaration order (array bounds may use earlier constants, and
	// constants may use earlier enum members); then link class bases and
	// fill member tables.
	for _, d := range b.Decls {
		switch decl := d.(type) {
		case *TypeDecl:
			sym := c.scope.lookupLocal(decl.Name)
			c.resolveTypeDecl(sym)
			c.checkFinite(sym.Type, decl.Line, nil)
		case *ConstDecl:
			v := c.constEval(decl.Value)
			sym := &Symbol{Kind: SymConst, Name: decl.Name, Type: v.T, Decl: decl}
			c.scope.define(sym, decl.Line)
			c.info.Consts[sym] = v
		}
	}
	for _, d := range b.Decls {
		if decl, ok := d.(*ClassDecl); ok {
			c.linkClassBase(decl)
		}
	}
	for _, d := range b.Decls {
		if decl, ok := d.(*ClassDecl); ok {
			c.fillClassMembers(decl)
		}
	}

	// Phase 1c: routine signatures.
	for _, d := range b.Decls {
		switch decl := d.(type) {
		case *ProcDecl:
			sym := &Symbol{Kind: SymProc, Name: decl.Name, Decl: decl, Params: c.resolveParams(decl.Params)}
			c.scope.define(sym, decl.Line)
			c.info.DeclSyms[decl] = sym
		case *FuncDecl:
			ret := c.resolveTypeExpr(decl.Ret)
			if isFileType(ret) {
				raise(TypeError, decl.Line, "a function cannot return a file")
			}
			sym := &Symbol{Kind: SymFunc, Name: decl.Name, Type: ret, Decl: decl, Params: c.resolveParams(decl.Params)}
			c.scope.define(sym, decl.Line)
			c.info.DeclSyms[decl] = sym
		}
	}

	// Phase 2: declarations in order, then statements.
	for _, d := range b.Decls {
		switch decl := d.(type) {
		case *VarDecl:
			t := c.resolveTypeExpr(decl.Type)
			c.info.VarTypes[decl] = t
			for _, name := range decl.Names {
				c.scope.define(&Symbol{Kind: SymVar, Name: name, Type: t, Decl: decl}, decl.Line)
			}
		case *ConstDecl:
			// Folded during phase 1b.
		case *ProcDecl:
			sym := c.scope.lookupLocal(decl.Name)
			c.checkRoutineBody(sym, decl.Params, decl.Body, nil)
		case *FuncDecl:
			sym := c.scope.lookupLocal(decl.Name)
			c.checkRoutineBody(sym, decl.Params, decl.Body, sym.Type)
		case *ClassDecl:
			c.checkClassBodies(decl)
		}
	}
	for _, s := range b.Stmts {
		c.checkStmt(s)
	}
}

// ---- type resolution -------------------------------------------------------

func (c *Checker) resolveTypeDecl(sym *Symbol) *Type {
	if sym.Type != nil {
		return sym.Type
	}
	decl := sym.Decl.(*TypeDecl)
	if sh, ok := c.shells[decl.Name]; ok {
		return sh // in progress: a pointer or field referencing us
	}
	switch def := decl.Def.(type) {
	case *RecordTypeExpr:
		t := &Type{Kind: TRecord, Name: decl.Name}
		c.shells[decl.Name] = t
		seen := map[string]bool{}
		for _, f := range def.Fields {
			if seen[f.Name] {
				raise(NameError, f.Line, "duplicate field %q", f.Name)
			}
			seen[f.Name] = true
			ft := c.resolveTypeExpr(f.Type)
			if isFileType(ft) {
				raise(TypeError, f.Line, "a record field cannot be a file")
			}
			t.Fields = append(t.Fields, FieldType{Name: f.Name, Type: ft})
		}
		delete(c.shells, decl.Name)
		sym.Type = t
	case *EnumTypeExpr:
		t := &Type{Kind: TEnum, Name: decl.Name, Members: def.Members}
		sym.Type = t
		seen := map[string]bool{}
		for ord, m := range def.Members {
			if seen[m] {
				raise(NameError, def.Line, "duplicate enum member %q", m)
			}
			seen[m] = true
			msym := &Symbol{Kind: SymEnumMember, Name: m, Type: t, Decl: decl}
			c.scope.define(msym, decl.Line)
			c.info.Consts[msym] = Value{T: t, Data: int32(ord)}
		}
	default:
		sym.Type = c.resolveTypeExpr(decl.Def)
	}
	return sym.Type
}

func (c *Checker) resolveNamed(name string, line int) *Type {
	sym := c.scope.lookup(name)
	if sym == nil {
		raise(NameError, line, "undeclared type %q", name)
	}
	switch sym.Kind {
	case SymClass:
		return sym.Type
	case SymType:
		return c.resolveTypeDecl(sym)
	}
	raise(TypeError, line, "%q is a %s, not a type", name, sym.Kind)
	return nil
}

func (c *Checker) resolveTypeExpr(te TypeExpr) *Type {
	switch x := te.(type) {
	case *BasicTypeExpr:
		switch x.Name {
		case "INTEGER":
			return typeInteger
		case "REAL":
			return typeReal
		case "BOOLEAN":
			return typeBoolean
		case "CHAR":
			return typeChar
		case "STRING":
			return typeString
		case "DATE":
			return typeDate
		}
	case *NamedTypeExpr:
		return c.resolveNamed(x.Name, x.Line)
	case *ArrayTypeExpr:
		t := &Type{Kind: TArray}
		for _, b := range x.Bounds {
			lo := c.constInt(b.Lo)
			hi := c.constInt(b.Hi)
			if lo > hi {
				raise(SyntaxError, x.Line, "array bound %d:%d is empty", lo, hi)
			}
			t.Bounds = append(t.Bounds, Bounds{Low: lo, High: hi})
		}
		elem := c.resolveTypeExpr(x.Elem)
		if isFileType(elem) {
			raise(TypeError, x.Line, "an array element cannot be a file")
		}
		t.Elem = elem
		return t
	case *PointerTypeExpr:
		target := c.resolveTypeExpr(x.Target)
		if isFileType(target) {
			raise(TypeError, x.Line, "a pointer cannot target a file")
		}
		return &Type{Kind: TPointer, Elem: target}
	case *TextFileTypeExpr:
		return &Type{Kind: TTextFile}
	case *RandomFileTypeExpr:
		rec := c.resolveNamed(x.Record, x.Line)
		if rec.Kind != TRecord {
			raise(TypeError, x.Line, "RANDOMFILE OF requires a record type, found %s", rec)
		}
		if !fixedSize(rec) {
			raise(TypeError, x.Line, "record %s is not fixed-size (STRING, SET, POINTER and class fields are not allowed)", rec)
		}
		return &Type{Kind: TRandomFile, Elem: rec}
	case *SetTypeExpr:
		base := c.resolveNamed(x.Base, x.Line)
		if base.Kind != TEnum {
			raise(TypeError, x.Line, "SET OF requires an enumeration, found %s", base)
		}
		return &Type{Kind: TSet, Name: base.Name, Elem: base}
	case *RecordTypeExpr:
		raise(SyntaxError, x.Line, "RECORD types must be named with TYPE")
	case *EnumTypeExpr:
		raise(SyntaxError, x.Line, "enumerations must be named with TYPE")
	}
	raise(SyntaxError, te.Pos(), "invalid type")
	return nil
}

// checkFinite rejects records that (transitively) embed themselves by
// value; recursion must go through a pointer.
func (c *Checker) checkFinite(t *Type, line int, visiting []*Type) {
	for _, v := range visiting {
		if v == t {
			raise(TypeError, line, "type %s contains itself", t)
		}
	}
	switch t.Kind {
	case TRecord:
		visiting = append(visiting, t)
		for _, f := range t.Fields {
			c.checkFinite(f.Type, line, visiting)
		}
	case TArray:
		c.checkFinite(t.Elem, line, visiting)
	}
}

func (c *Checker) resolveParams(params []*Param) []*ParamSig {
	var out []*ParamSig
	seen := map[string]bool{}
	for _, p := range params {
		if seen[p.Name] {
			raise(NameError, p.Line, "duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		t := c.resolveTypeExpr(p.Type)
		if isFileType(t) && !p.ByRef {
			raise(TypeError, p.Line, "file parameters must be BYREF")
		}
		out = append(out, &ParamSig{Name: p.Name, Type: t, ByRef: p.ByRef})
	}
	return out
}

// ---- classes ---------------------------------------------------------------

func (c *Checker) linkClassBase(decl *ClassDecl) {
	cls := c.info.Classes[decl.Name]
	if decl.Base == "" {
		return
	}
	base, ok := c.info.Classes[decl.Base]
	if !ok {
		raise(NameError, decl.Line, "undeclared base class %q", decl.Base)
	}
	cls.Base = base
	// Inheritance cycles would make dispatch walk forever.
	for b := base; b != nil; b = b.Base {
		if b == cls {
			raise(SyntaxError, decl.Line, "inheritance cycle through %q", decl.Name)
		}
	}
}

func (c *Checker) fillClassMembers(decl *ClassDecl) {
	cls := c.info.Classes[decl.Name]
	for _, m := range decl.Members {
		switch d := m.Decl.(type) {
		case *VarDecl:
			t := c.resolveTypeExpr(d.Type)
			if isFileType(t) {
				raise(TypeError, d.Line, "a class field cannot be a file")
			}
			for _, name := range d.Names {
				if cls.findField(name) != nil || cls.findMethod(name) != nil {
					raise(NameError, d.Line, "duplicate member %q in class %q", name, decl.Name)
				}
				cls.Fields = append(cls.Fields, &Symbol{
					Kind: SymField, Name: name, Type: t,
					Access: m.Access, Owner: decl.Name, Decl: d,
				})
			}
		case *ProcDecl:
			c.defineMethod(cls, m.Access, d.Name, c.resolveParams(d.Params), nil, false, d)
		case *FuncDecl:
			ret := c.resolveTypeExpr(d.Ret)
			if isFileType(ret) {
				raise(TypeError, d.Line, "a method cannot return a file")
			}
			c.defineMethod(cls, m.Access, d.Name, c.resolveParams(d.Params), ret, true, d)
		case *CtorDecl:
			if cls.Ctor != nil {
				raise(SyntaxError, d.Line, "class %q has more than one constructor", decl.Name)
			}
			cls.Ctor = &Symbol{
				Kind: SymCtor, Name: "NEW", Access: m.Access, Owner: decl.Name,
				Decl: d, Params: c.resolveParams(d.Params),
			}
		}
	}
}

// defineMethod registers a method, enforcing that an override keeps the
// inherited signature (calls through a base-typed reference stay sound).
func (c *Checker) defineMethod(cls *ClassInfo, access Access, name string, params []*ParamSig, ret *Type, isFunc bool, decl Node) {
	if cls.findField(name) != nil {
		raise(NameError, decl.Pos(), "duplicate member %q in class %q", name, cls.Name)
	}
	for _, m := range cls.Methods {
		if m.Name == name {
			raise(NameError, decl.Pos(), "duplicate member %q in class %q", name, cls.Name)
		}
	}
	if cls.Base != nil {
		if inherited := cls.Base.findMethod(name); inherited != nil {
			if !sameSignature(inherited, params, ret, isFunc) {
				raise(TypeError, decl.Pos(), "method %q does not match the signature it overrides", name)
			}
		}
	}
	cls.Methods = append(cls.Methods, &Symbol{
		Kind: SymMethod, Name: name, Type: ret, Access: access,
		Owner: cls.Name, Decl: decl, Params: params, IsFunc: isFunc,
	})
}

func sameSignature(m *Symbol, params []*ParamSig, ret *Type, isFunc bool) bool {
	if m.IsFunc != isFunc || len(m.Params) != len(params) {
		return false
	}
	for i, p := range m.Params {
		if p.ByRef != params[i].ByRef || !typeEqual(p.Type, params[i].Type) {
			return false
		}
	}
	if isFunc {
		return typeEqual(m.Type, ret)
	}
	return true
}

func (c *Checker) checkClassBodies(decl *ClassDecl) {
	cls := c.info.Classes[decl.Name]
	prev := c.curClass
	c.curClass = cls
	defer func() { c.curClass = prev }()

	for _, m := range decl.Members {
		switch d := m.Decl.(type) {
		case *ProcDecl:
			sym := cls.findMethod(d.Name)
			c.checkRoutineBody(sym, d.Params, d.Body, nil)
		case *FuncDecl:
			sym := cls.findMethod(d.Name)
			c.checkRoutineBody(sym, d.Params, d.Body, sym.Type)
		case *CtorDecl:
			prevCtor := c.inCtor
			c.inCtor = true
			c.checkRoutineBody(cls.Ctor, d.Params, d.Body, nil)
			c.inCtor = prevCtor
		}
	}
}

func (c *Checker) checkRoutineBody(sym *Symbol, params []*Param, body *Block, ret *Type) {
	prevRet, prevIn := c.retType, c.inRoutine
	c.retType, c.inRoutine = ret, true
	c.pushScope()
	for i, p := range params {
		c.scope.define(&Symbol{Kind: SymParam, Name: p.Name, Type: sym.Params[i].Type, Decl: p}, p.Line)
	}
	c.checkBlock(body, false)
	c.popScope()
	c.retType, c.inRoutine = prevRet, prevIn
}

// ---- statements ------------------------------------------------------------

func (c *Checker) checkStmt(s Stmt) {
	switch x := s.(type) {
	case *AssignStmt:
		c.checkAssign(x)
	case *IfStmt:
		c.checkCond(x.Cond)
		c.checkChildBlock(x.Then)
		if x.Else != nil {
			c.checkChildBlock(x.Else)
		}
	case *CaseStmt:
		c.checkCase(x)
	case *ForStmt:
		c.checkFor(x)
	case *WhileStmt:
		c.checkCond(x.Cond)
		c.checkChildBlock(x.Body)
	case *RepeatStmt:
		c.checkChildBlock(x.Body)
		c.checkCond(x.Cond)
	case *CallStmt:
		c.checkCallStmt(x)
	case *ReturnStmt:
		c.checkReturn(x)
	case *InputStmt:
		for _, lv := range x.Targets {
			t := c.checkLvalue(lv)
			if !inputParseable(t) {
				raise(TypeError, lv.Pos(), "INPUT target cannot have type %s", t)
			}
		}
	case *OutputStmt:
		for _, v := range x.Values {
			t := c.typeOf(v)
			if !outputtable(t) {
				raise(TypeError, v.Pos(), "OUTPUT value cannot have type %s", t)
			}
		}
	case *SuperStmt:
		c.checkSuperStmt(x)
	case *OpenFileStmt:
		ft := c.checkLvalue(x.File)
		if !isFileType(ft) {
			raise(TypeError, x.Line, "OPENFILE requires a file variable, found %s", ft)
		}
		c.want(x.Path, typeString, "OPENFILE path")
		c.want(x.Mode, typeString, "OPENFILE mode")
	case *CloseFileStmt:
		if !isFileType(c.checkLvalue(x.File)) {
			raise(TypeError, x.Line, "CLOSEFILE requires a file variable")
		}
	case *ReadFileStmt:
		c.wantFile(x.File, TTextFile, "READFILE")
		t := c.checkLvalue(x.Target)
		if !inputParseable(t) {
			raise(TypeError, x.Target.Pos(), "READFILE target cannot have type %s", t)
		}
	case *WriteFileStmt:
		c.wantFile(x.File, TTextFile, "WRITEFILE")
		if t := c.typeOf(x.Value); !outputtable(t) {
			raise(TypeError, x.Value.Pos(), "WRITEFILE value cannot have type %s", t)
		}
	case *SeekStmt:
		c.wantFile(x.File, TRandomFile, "SEEK")
		c.want(x.Position, typeInteger, "SEEK position")
	case *GetRecordStmt:
		ft := c.wantFile(x.File, TRandomFile, "GETRECORD")
		t := c.checkLvalue(x.Target)
		if !typeEqual(t, ft.Elem) {
			raise(TypeError, x.Line, "GETRECORD target must have type %s, found %s", ft.Elem, t)
		}
	case *PutRecordStmt:
		ft := c.wantFile(x.File, TRandomFile, "PUTRECORD")
		t := c.typeOf(x.Value)
		if !typeEqual(t, ft.Elem) {
			raise(TypeError, x.Line, "PUTRECORD value must have type %s, found %s", ft.Elem, t)
		}
	}
}

func (c *Checker) checkChildBlock(b *Block) {
	c.pushScope()
	c.checkBlock(b, false)
	c.popScope()
}

func (c *Checker) checkCond(e Expr) {
	if t := c.typeOf(e); t.Kind != TBoolean {
		raise(TypeError, e.Pos(), "condition must be BOOLEAN, found %s", t)
	}
}

func (c *Checker) want(e Expr, t *Type, what string) {
	if got := c.typeOf(e); !typeEqual(got, t) {
		raise(TypeError, e.Pos(), "%s must be %s, found %s", what, t, got)
	}
}

func (c *Checker) wantFile(e Expr, kind TypeKind, stmt string) *Type {
	t := c.checkLvalue(e)
	if t.Kind != kind {
		raise(TypeError, e.Pos(), "%s requires a %s variable, found %s", stmt, &Type{Kind: kind}, t)
	}
	return t
}

func (c *Checker) checkAssign(x *AssignStmt) {
	if name, ok := x.Target.(*NameExpr); ok {
		if sym := c.scope.lookup(name.Name); sym != nil {
			if sym.Kind == SymConst {
				raise(AccessError, x.Line, "cannot assign to constant %q", name.Name)
			}
			if sym.LoopVar {
				raise(AccessError, x.Line, "cannot assign to loop counter %q", name.Name)
			}
		}
	}
	dst := c.checkLvalue(x.Target)
	src := c.typeOf(x.Value)
	if isFileType(dst) || isFileType(src) {
		raise(TypeError, x.Line, "file values cannot be assigned")
	}
	if !c.assignable(dst, src) {
		raise(TypeError, x.Line, "cannot assign %s to %s", src, dst)
	}
}

// assignable is type equality plus the two sanctioned exceptions: NULL into
// any pointer or class slot, and a derived class reference into a base slot.
func (c *Checker) assignable(dst, src *Type) bool {
	if typeEqual(dst, src) {
		return true
	}
	if src.Kind == TNull && (dst.Kind == TPointer || dst.Kind == TClass) {
		return true
	}
	if dst.Kind == TClass && src.Kind == TClass {
		d := c.info.Classes[src.Name]
		b := c.info.Classes[dst.Name]
		return d != nil && b != nil && d.inheritsFrom(b)
	}
	return false
}

func (c *Checker) checkCase(x *CaseStmt) {
	st := c.typeOf(x.Subject)
	if !isCaseType(st) {
		raise(TypeError, x.Subject.Pos(), "CASE expression must be INTEGER, CHAR, DATE or an enumeration, found %s", st)
	}
	var singles []Value
	for _, br := range x.Branches {
		for _, lab := range br.Labels {
			lo := c.constEval(lab.Lo)
			if !typeEqual(lo.T, st) {
				raise(TypeError, lab.Lo.Pos(), "case label type %s does not match %s", lo.T, st)
			}
			c.info.LabelVals[lab.Lo] = lo
			if lab.Hi != nil {
				hi := c.constEval(lab.Hi)
				if !typeEqual(hi.T, st) {
					raise(TypeError, lab.Hi.Pos(), "case label type %s does not match %s", hi.T, st)
				}
				c.info.LabelVals[lab.Hi] = hi
				continue
			}
			for _, prev := range singles {
				if valueEqual(prev, lo) {
					raise(SyntaxError, lab.Lo.Pos(), "duplicate case label")
				}
			}
			singles = append(singles, lo)
		}
		c.checkChildBlock(br.Body)
	}
	if x.Otherwise != nil {
		c.checkChildBlock(x.Otherwise)
	}
}

func (c *Checker) checkFor(x *ForStmt) {
	c.want(x.Start, typeInteger, "FOR start")
	c.want(x.End, typeInteger, "FOR end")
	if x.Step != nil {
		c.want(x.Step, typeInteger, "FOR step")
	}
	if x.Name != x.NextName {
		raise(SyntaxError, x.NextLine, "NEXT %s does not match FOR %s", x.NextName, x.Name)
	}
	c.pushScope()
	c.scope.define(&Symbol{Kind: SymVar, Name: x.Name, Type: typeInteger, LoopVar: true, Decl: x}, x.Line)
	c.checkBlock(x.Body, false)
	c.popScope()
}

func (c *Checker) checkReturn(x *ReturnStmt) {
	if !c.inRoutine {
		raise(SyntaxError, x.Line, "RETURN outside a routine")
	}
	if c.retType == nil {
		if x.Value != nil {
			raise(TypeError, x.Line, "a procedure cannot return a value")
		}
		return
	}
	if x.Value == nil {
		raise(TypeError, x.Line, "a function must return a value")
	}
	got := c.typeOf(x.Value)
	if !c.assignable(c.retType, got) {
		raise(TypeError, x.Line, "cannot return %s from a function returning %s", got, c.retType)
	}
}

func (c *Checker) checkSuperStmt(x *SuperStmt) {
	if !c.inCtor || c.curClass == nil {
		raise(SyntaxError, x.Line, "SUPER(...) is only valid inside a constructor")
	}
	if c.curClass.Base == nil {
		raise(SyntaxError, x.Line, "class %q has no base class", c.curClass.Name)
	}
	_, ctor := c.curClass.Base.nearestCtor()
	if ctor == nil {
		if len(x.Args) != 0 {
			raise(TypeError, x.Line, "base class %q has no constructor taking arguments", c.curClass.Base.Name)
		}
		return
	}
	c.checkArgs(ctor.Params, x.Args, x.Line, "constructor")
}

func (c *Checker) checkCallStmt(x *CallStmt) {
	switch call := x.Call.(type) {
	case *SuperMethodExpr:
		m := c.checkSuperMethod(call)
		if m.IsFunc {
			raise(TypeError, x.Line, "CALL requires a procedure, %q is a function", call.Name)
		}
	case *CallExpr:
		c.checkCall(call, false)
	}
}

// ---- expressions -----------------------------------------------------------

// typeOf types an expression, memoizing the result.
func (c *Checker) typeOf(e Expr) *Type {
	if t, ok := c.info.ExprTypes[e]; ok {
		return t
	}
	t := c.typeExpr(e)
	c.info.ExprTypes[e] = t
	return t
}

func (c *Checker) typeExpr(e Expr) *Type {
	switch x := e.(type) {
	case *IntLit:
		return typeInteger
	case *RealLit:
		return typeReal
	case *BoolLit:
		return typeBoolean
	case *CharLit:
		return typeChar
	case *StrLit:
		return typeString
	case *DateLit:
		x.Days = parseDate(x.Text, x.Line)
		return typeDate
	case *NullLit:
		return typeNull
	case *NameExpr:
		return c.typeName(x)
	case *UnaryExpr:
		return c.typeUnary(x)
	case *BinaryExpr:
		return c.typeBinary(x)
	case *AddrExpr:
		t := c.checkLvalue(x.X)
		if isFileType(t) {
			raise(TypeError, x.Line, "cannot take the address of a file")
		}
		return &Type{Kind: TPointer, Elem: t}
	case *DerefExpr:
		t := c.typeOf(x.X)
		if t.Kind != TPointer {
			raise(TypeError, x.Line, "^ requires a pointer, found %s", t)
		}
		return t.Elem
	case *IndexExpr:
		return c.typeIndex(x)
	case *FieldExpr:
		return c.typeField(x)
	case *CallExpr:
		return c.checkCall(x, true)
	case *SuperMethodExpr:
		m := c.checkSuperMethod(x)
		if !m.IsFunc {
			raise(TypeError, x.Line, "method %q does not return a value", x.Name)
		}
		return m.Type
	case *NewExpr:
		return c.typeNew(x)
	case *EOFExpr:
		t := c.checkLvalue(x.File)
		if !isFileType(t) {
			raise(TypeError, x.Line, "EOF requires a file variable, found %s", t)
		}
		return typeBoolean
	case *SetLit:
		return c.typeSetLit(x)
	}
	raise(SyntaxError, e.Pos(), "invalid expression")
	return nil
}

func (c *Checker) typeName(x *NameExpr) *Type {
	if sym := c.scope.lookup(x.Name); sym != nil {
		switch sym.Kind {
		case SymVar, SymParam, SymConst, SymEnumMember:
			c.info.Bindings[x] = sym
			return sym.Type
		case SymProc, SymFunc:
			raise(TypeError, x.Line, "%s %q must be called", sym.Kind, x.Name)
		default:
			raise(TypeError, x.Line, "%s %q cannot be used as a value", sym.Kind, x.Name)
		}
	}
	// Inside a method body, bare names reach the enclosing class's members.
	if c.curClass != nil {
		if f := c.curClass.findField(x.Name); f != nil {
			c.checkAccess(f, x.Line)
			c.info.Bindings[x] = f
			return f.Type
		}
	}
	raise(NameError, x.Line, "undeclared identifier %q", x.Name)
	return nil
}

func (c *Checker) typeUnary(x *UnaryExpr) *Type {
	t := c.typeOf(x.X)
	switch x.Op {
	case "+", "-":
		if t.Kind == TInteger || t.Kind == TReal {
			return t
		}
	case "NOT":
		if t.Kind == TBoolean {
			return t
		}
	}
	raise(TypeError, x.Line, "operator %s is not applicable to %s", x.Op, t)
	return nil
}

func (c *Checker) typeBinary(x *BinaryExpr) *Type {
	l := c.typeOf(x.L)
	r := c.typeOf(x.R)
	fail := func() *Type {
		raise(TypeError, x.Line, "operator %s is not applicable to %s and %s", x.Op, l, r)
		return nil
	}
	switch x.Op {
	case "+", "-", "*":
		if l.Kind == TInteger && r.Kind == TInteger {
			return typeInteger
		}
		if l.Kind == TReal && r.Kind == TReal {
			return typeReal
		}
		return fail()
	case "/":
		if (l.Kind == TInteger && r.Kind == TInteger) || (l.Kind == TReal && r.Kind == TReal) {
			return typeReal
		}
		return fail()
	case "DIV", "MOD":
		if l.Kind == TInteger && r.Kind == TInteger {
			return typeInteger
		}
		return fail()
	case "&":
		if (l.Kind == TString || l.Kind == TChar) && (r.Kind == TString || r.Kind == TChar) {
			return typeString
		}
		return fail()
	case "AND", "OR":
		if l.Kind == TBoolean && r.Kind == TBoolean {
			return typeBoolean
		}
		return fail()
	case "=", "<>":
		if typeEqual(l, r) && isEquatable(l) {
			return typeBoolean
		}
		return fail()
	case "<", "<=", ">", ">=":
		if typeEqual(l, r) && isOrdered(l) {
			return typeBoolean
		}
		return fail()
	case "IN":
		if l.Kind == TEnum && r.Kind == TSet && r.Name == l.Name {
			return typeBoolean
		}
		return fail()
	case "UNION", "INTERSECT", "DIFF":
		if l.Kind == TSet && r.Kind == TSet && l.Name == r.Name {
			return l
		}
		return fail()
	}
	return fail()
}

func (c *Checker) typeIndex(x *IndexExpr) *Type {
	base := c.typeOf(x.Base)
	if base.Kind != TArray {
		raise(TypeError, x.Line, "indexing requires an array, found %s", base)
	}
	if len(x.Indexes) != len(base.Bounds) {
		raise(TypeError, x.Line, "array has %d dimensions, %d indexes given", len(base.Bounds), len(x.Indexes))
	}
	for _, idx := range x.Indexes {
		c.want(idx, typeInteger, "array index")
	}
	return base.Elem
}

func (c *Checker) typeField(x *FieldExpr) *Type {
	base := c.typeOf(x.Base)
	switch base.Kind {
	case TRecord:
		for _, f := range base.Fields {
			if f.Name == x.Name {
				return f.Type
			}
		}
		raise(NameError, x.Line, "record %s has no field %q", base, x.Name)
	case TClass:
		cls := c.info.Classes[base.Name]
		if f := cls.findField(x.Name); f != nil {
			c.checkAccess(f, x.Line)
			c.info.Bindings[x] = f
			return f.Type
		}
		if cls.findMethod(x.Name) != nil {
			raise(TypeError, x.Line, "method %q must be called", x.Name)
		}
		raise(NameError, x.Line, "class %q has no member %q", base.Name, x.Name)
	}
	raise(TypeError, x.Line, "field access requires a record or class, found %s", base)
	return nil
}

func (c *Checker) checkAccess(sym *Symbol, line int) {
	if sym.Access == Private && (c.curClass == nil || c.curClass.Name != sym.Owner) {
		raise(AccessError, line, "%s %q is private to class %q", sym.Kind, sym.Name, sym.Owner)
	}
}

// checkCall types a call. asFunc selects expression context (callee must
// produce a value) versus CALL context (callee must be a procedure).
func (c *Checker) checkCall(x *CallExpr, asFunc bool) *Type {
	switch callee := x.Callee.(type) {
	case *NameExpr:
		if sym := c.scope.lookup(callee.Name); sym != nil {
			switch sym.Kind {
			case SymFunc:
				if !asFunc {
					raise(TypeError, x.Line, "CALL requires a procedure, %q is a function", callee.Name)
				}
				c.info.Bindings[callee] = sym
				c.checkArgs(sym.Params, x.Args, x.Line, callee.Name)
				return sym.Type
			case SymProc:
				if asFunc {
					raise(TypeError, x.Line, "procedure %q does not return a value", callee.Name)
				}
				c.info.Bindings[callee] = sym
				c.checkArgs(sym.Params, x.Args, x.Line, callee.Name)
				return nil
			default:
				raise(TypeError, x.Line, "%s %q cannot be called", sym.Kind, callee.Name)
			}
		}
		// Method of the enclosing class by bare name.
		if c.curClass != nil {
			if m := c.curClass.findMethod(callee.Name); m != nil {
				return c.checkMethodCall(x, callee, m, asFunc)
			}
		}
		if b := builtinByName(callee.Name); b != nil {
			if !asFunc {
				raise(TypeError, x.Line, "CALL requires a procedure, %q is a function", callee.Name)
			}
			return b.check(c, x)
		}
		raise(NameError, x.Line, "undeclared identifier %q", callee.Name)
	case *FieldExpr:
		base := c.typeOf(callee.Base)
		if base.Kind != TClass {
			raise(TypeError, x.Line, "method call requires a class value, found %s", base)
		}
		cls := c.info.Classes[base.Name]
		m := cls.findMethod(callee.Name)
		if m == nil {
			raise(NameError, callee.Line, "class %q has no method %q", base.Name, callee.Name)
		}
		return c.checkMethodCall(x, callee, m, asFunc)
	}
	raise(TypeError, x.Line, "expression cannot be called")
	return nil
}

func (c *Checker) checkMethodCall(x *CallExpr, callee Expr, m *Symbol, asFunc bool) *Type {
	c.checkAccess(m, x.Line)
	if asFunc && !m.IsFunc {
		raise(TypeError, x.Line, "method %q does not return a value", m.Name)
	}
	if !asFunc && m.IsFunc {
		raise(TypeError, x.Line, "CALL requires a procedure, %q is a function", m.Name)
	}
	c.info.Bindings[callee] = m
	c.checkArgs(m.Params, x.Args, x.Line, m.Name)
	return m.Type
}

func (c *Checker) checkSuperMethod(x *SuperMethodExpr) *Symbol {
	if c.curClass == nil {
		raise(SyntaxError, x.Line, "SUPER is only valid inside a class")
	}
	if c.curClass.Base == nil {
		raise(SyntaxError, x.Line, "class %q has no base class", c.curClass.Name)
	}
	m := c.curClass.Base.findMethod(x.Name)
	if m == nil {
		raise(NameError, x.Line, "base class %q has no method %q", c.curClass.Base.Name, x.Name)
	}
	c.checkAccess(m, x.Line)
	c.checkArgs(m.Params, x.Args, x.Line, x.Name)
	c.info.Bindings[x] = m
	return m
}

func (c *Checker) checkArgs(params []*ParamSig, args []Expr, line int, what string) {
	if len(args) != len(params) {
		raise(TypeError, line, "%s expects %d arguments, got %d", what, len(params), len(args))
	}
	for i, arg := range args {
		p := params[i]
		if p.ByRef {
			t := c.checkLvalue(arg)
			if !typeEqual(t, p.Type) {
				raise(TypeError, arg.Pos(), "BYREF argument %d must have type %s, found %s", i+1, p.Type, t)
			}
			continue
		}
		t := c.typeOf(arg)
		if !c.assignable(p.Type, t) {
			raise(TypeError, arg.Pos(), "argument %d must have type %s, found %s", i+1, p.Type, t)
		}
	}
}

func (c *Checker) typeNew(x *NewExpr) *Type {
	t := c.resolveTypeExpr(x.Type)
	if t.Kind == TClass {
		cls := c.info.Classes[t.Name]
		_, ctor := cls.nearestCtor()
		if ctor == nil {
			if len(x.Args) != 0 {
				raise(TypeError, x.Line, "class %q has no constructor taking arguments", t.Name)
			}
			return t
		}
		c.checkArgs(ctor.Params, x.Args, x.Line, "constructor")
		return t
	}
	if x.HasParens {
		raise(TypeError, x.Line, "%s is not a class", t)
	}
	if isFileType(t) {
		raise(TypeError, x.Line, "cannot allocate a file")
	}
	return &Type{Kind: TPointer, Elem: t}
}

func (c *Checker) typeSetLit(x *SetLit) *Type {
	var enum *Type
	for _, el := range x.Elems {
		t := c.typeOf(el)
		if t.Kind != TEnum {
			raise(TypeError, el.Pos(), "set members must be enumeration values, found %s", t)
		}
		if enum == nil {
			enum = t
		} else if !typeEqual(enum, t) {
			raise(TypeError, el.Pos(), "set members must belong to one enumeration")
		}
	}
	return &Type{Kind: TSet, Name: enum.Name, Elem: enum}
}

// checkLvalue types e and verifies it designates a place.
func (c *Checker) checkLvalue(e Expr) *Type {
	t := c.typeOf(e)
	if !c.isLvalue(e) {
		raise(TypeError, e.Pos(), "expression is not assignable")
	}
	return t
}

func (c *Checker) isLvalue(e Expr) bool {
	switch x := e.(type) {
	case *NameExpr:
		sym := c.info.Bindings[x]
		return sym != nil && (sym.Kind == SymVar || sym.Kind == SymParam || sym.Kind == SymField)
	case *IndexExpr:
		return c.isLvalue(x.Base)
	case *FieldExpr:
		if bt := c.info.ExprTypes[x.Base]; bt != nil && bt.Kind == TClass {
			return true
		}
		return c.isLvalue(x.Base)
	case *DerefExpr:
		return true
	}
	return false
}

func inputParseable(t *Type) bool {
	switch t.Kind {
	case TInteger, TReal, TBoolean, TChar, TString, TDate, TEnum:
		return true
	}
	return false
}

func outputtable(t *Type) bool {
	switch t.Kind {
	case TInteger, TReal, TBoolean, TChar, TString, TDate:
		return true
	}
	return false
}
