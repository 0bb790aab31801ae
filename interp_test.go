package lucid

import (
	"strings"
	"testing"
)

// --- helpers ---------------------------------------------------------------

func run(t *testing.T, src, stdin string) string {
	t.Helper()
	out, err := Run(src, stdin, NewMemFS())
	if err != nil {
		t.Fatalf("run error: %v\nsource:\n%s", err, src)
	}
	return out
}

func runErr(t *testing.T, kind ErrKind, src, stdin string) *Error {
	t.Helper()
	_, err := Run(src, stdin, NewMemFS())
	if err == nil {
		t.Fatalf("expected %s, got none\nsource:\n%s", kind, src)
	}
	if err.Kind != kind {
		t.Fatalf("expected %s, got %v\nsource:\n%s", kind, err, src)
	}
	return err
}

func wantOut(t *testing.T, src, stdin, want string) {
	t.Helper()
	if got := run(t, src, stdin); got != want {
		t.Fatalf("want %q, got %q\nsource:\n%s", want, got, src)
	}
}

// --- spec scenarios --------------------------------------------------------

func Test_Scenario_AverageScores(t *testing.T) {
	wantOut(t, `PROGRAM AverageScores
  DECLARE Count : INTEGER
  DECLARE Sum   : INTEGER
  DECLARE Score : INTEGER
  DECLARE Avg   : REAL
  Sum <- 0
  INPUT Count
  FOR i <- 1 TO Count
    INPUT Score
    Sum <- Sum + Score
  NEXT i
  Avg <- REAL(Sum) / REAL(Count)
  OUTPUT "Average = " & STRING(Avg)
ENDPROGRAM`, "3 10 20 30", "Average = 20\n")
}

func Test_Scenario_EuclideanMod(t *testing.T) {
	wantOut(t, "PROGRAM M\nOUTPUT -7 MOD 3\nENDPROGRAM", "", "2\n")
	wantOut(t, "PROGRAM M\nOUTPUT -7 DIV 3\nENDPROGRAM", "", "-3\n")
}

func Test_Scenario_NoShortCircuit(t *testing.T) {
	src := `PROGRAM NoShortCircuit
  DECLARE Count : INTEGER
  DECLARE R : BOOLEAN
  FUNCTION F() RETURNS BOOLEAN
    Count <- Count + 1
    RETURN FALSE
  ENDFUNCTION
  FUNCTION G() RETURNS BOOLEAN
    Count <- Count + 1
    RETURN FALSE
  ENDFUNCTION
  Count <- 0
  R <- F() AND G()
  OUTPUT Count
  R <- F() OR G()
  OUTPUT Count
ENDPROGRAM`
	wantOut(t, src, "", "2\n4\n")
}

func Test_Scenario_NullDereference(t *testing.T) {
	err := runErr(t, RuntimeError, `PROGRAM NullDeref
  DECLARE P : POINTER TO INTEGER
  P <- NULL
  OUTPUT ^P
ENDPROGRAM`, "")
	if err.Error() != "RuntimeError at line 4: Null dereference." {
		t.Fatalf("unexpected diagnostic: %q", err.Error())
	}
}

func Test_Scenario_ClassDispatch(t *testing.T) {
	wantOut(t, `PROGRAM Dispatch
  CLASS Animal
    PUBLIC
    FUNCTION Speak() RETURNS STRING
      RETURN "base"
    ENDFUNCTION
  ENDCLASS
  CLASS Dog INHERITS Animal
    PUBLIC
    FUNCTION Speak() RETURNS STRING
      RETURN "woof"
    ENDFUNCTION
  ENDCLASS
  DECLARE A : Animal
  A <- NEW Dog()
  OUTPUT A.Speak()
ENDPROGRAM`, "", "woof\n")
}

func Test_Scenario_RandomFileRoundTrip(t *testing.T) {
	wantOut(t, `PROGRAM RoundTrip
  TYPE Rec = RECORD
    N : INTEGER
    D : DATE
  ENDRECORD
  DECLARE RF : RANDOMFILE OF Rec
  DECLARE W : Rec
  DECLARE R : Rec
  W.N <- 7
  W.D <- DATE "2024-02-29"
  OPENFILE(RF, "data.bin", "RANDOM")
  SEEK(RF, 1)
  PUTRECORD(RF, W)
  CLOSEFILE(RF)
  OPENFILE(RF, "data.bin", "RANDOM")
  SEEK(RF, 1)
  GETRECORD(RF, R)
  CLOSEFILE(RF)
  OUTPUT STRING(R.N) & " " & STRING(R.D)
ENDPROGRAM`, "", "7 2024-02-29\n")
}

// --- control flow ----------------------------------------------------------

func Test_Interp_IfElse(t *testing.T) {
	src := `PROGRAM P
  DECLARE N : INTEGER
  INPUT N
  IF N MOD 2 = 0 THEN
    OUTPUT "even"
  ELSE
    OUTPUT "odd"
  ENDIF
ENDPROGRAM`
	wantOut(t, src, "4", "even\n")
	wantOut(t, src, "7", "odd\n")
}

func Test_Interp_Case(t *testing.T) {
	src := `PROGRAM P
  DECLARE N : INTEGER
  INPUT N
  CASE OF N
    1, 2 : OUTPUT "low"
    3 TO 5 : OUTPUT "mid"
    OTHERWISE : OUTPUT "high"
  ENDCASE
ENDPROGRAM`
	wantOut(t, src, "2", "low\n")
	wantOut(t, src, "4", "mid\n")
	wantOut(t, src, "9", "high\n")

	// First match wins; without OTHERWISE a miss is a no-op.
	wantOut(t, `PROGRAM P
  CASE OF 3
    1 TO 5 : OUTPUT "a"
    3 : OUTPUT "b"
  ENDCASE
  CASE OF 9
    1 : OUTPUT "c"
  ENDCASE
  OUTPUT "done"
ENDPROGRAM`, "", "a\ndone\n")
}

func Test_Interp_CaseChar(t *testing.T) {
	wantOut(t, `PROGRAM P
  DECLARE C : CHAR
  INPUT C
  CASE OF C
    'a' TO 'z' : OUTPUT "lower"
    'A' TO 'Z' : OUTPUT "upper"
  ENDCASE
ENDPROGRAM`, "q", "lower\n")
}

func Test_Interp_ForLoops(t *testing.T) {
	wantOut(t, `PROGRAM P
  FOR i <- 1 TO 5
    OUTPUT i
  NEXT i
ENDPROGRAM`, "", "1\n2\n3\n4\n5\n")

	wantOut(t, `PROGRAM P
  FOR i <- 10 TO 1 STEP -3
    OUTPUT i
  NEXT i
ENDPROGRAM`, "", "10\n7\n4\n1\n")

	// Zero-trip when already past the end.
	wantOut(t, `PROGRAM P
  FOR i <- 5 TO 1
    OUTPUT i
  NEXT i
  OUTPUT "done"
ENDPROGRAM`, "", "done\n")

	runErr(t, RuntimeError, `PROGRAM P
  FOR i <- 1 TO 3 STEP 0
    OUTPUT i
  NEXT i
ENDPROGRAM`, "")

	// The counter shadows an outer variable and does not leak into it.
	wantOut(t, `PROGRAM P
  DECLARE i : INTEGER
  i <- 99
  FOR i <- 1 TO 3
  NEXT i
  OUTPUT i
ENDPROGRAM`, "", "99\n")
}

func Test_Interp_WhileRepeat(t *testing.T) {
	wantOut(t, `PROGRAM P
  DECLARE N : INTEGER
  N <- 3
  WHILE N > 0 DO
    OUTPUT N
    N <- N - 1
  ENDWHILE
ENDPROGRAM`, "", "3\n2\n1\n")

	// REPEAT runs its body at least once.
	wantOut(t, `PROGRAM P
  REPEAT
    OUTPUT "x"
  UNTIL TRUE
ENDPROGRAM`, "", "x\n")
}

// --- values & aliasing -----------------------------------------------------

func Test_Interp_ArrayCopyIsolation(t *testing.T) {
	wantOut(t, `PROGRAM P
  DECLARE A : ARRAY[1:3] OF INTEGER
  DECLARE B : ARRAY[1:3] OF INTEGER
  A[1] <- 1
  B <- A
  A[1] <- 99
  OUTPUT B[1]
ENDPROGRAM`, "", "1\n")
}

func Test_Interp_RecordInArray(t *testing.T) {
	wantOut(t, `PROGRAM P
  TYPE Point = RECORD
    X : INTEGER
    Y : INTEGER
  ENDRECORD
  DECLARE Grid : ARRAY[1:2, 1:2] OF Point
  Grid[2, 1].X <- 7
  OUTPUT Grid[2, 1].X + Grid[1, 1].X
ENDPROGRAM`, "", "7\n")
}

func Test_Interp_ArrayBounds(t *testing.T) {
	runErr(t, RangeError, `PROGRAM P
  DECLARE A : ARRAY[1:3] OF INTEGER
  A[4] <- 1
ENDPROGRAM`, "")
	runErr(t, RangeError, `PROGRAM P
  DECLARE A : ARRAY[2:3] OF INTEGER
  OUTPUT A[1]
ENDPROGRAM`, "")
}

func Test_Interp_Pointers(t *testing.T) {
	wantOut(t, `PROGRAM P
  DECLARE X : INTEGER
  DECLARE P1 : POINTER TO INTEGER
  X <- 1
  P1 <- @X
  ^P1 <- 5
  OUTPUT X
ENDPROGRAM`, "", "5\n")

	// Pointer assignment is a reference copy.
	wantOut(t, `PROGRAM P
  DECLARE P1 : POINTER TO INTEGER
  DECLARE P2 : POINTER TO INTEGER
  P1 <- NEW INTEGER
  ^P1 <- 3
  P2 <- P1
  ^P2 <- 9
  OUTPUT ^P1
ENDPROGRAM`, "", "9\n")
}

func Test_Interp_ByRef(t *testing.T) {
	wantOut(t, `PROGRAM P
  DECLARE X : INTEGER
  DECLARE Y : INTEGER
  PROCEDURE Swap(BYREF a : INTEGER, BYREF b : INTEGER)
    DECLARE t : INTEGER
    t <- a
    a <- b
    b <- t
  ENDPROCEDURE
  X <- 1
  Y <- 2
  CALL Swap(X, Y)
  OUTPUT X, Y
ENDPROGRAM`, "", "21\n")

	// BYVAL arguments are copies.
	wantOut(t, `PROGRAM P
  DECLARE X : INTEGER
  PROCEDURE Bump(a : INTEGER)
    a <- a + 1
  ENDPROCEDURE
  X <- 5
  CALL Bump(X)
  OUTPUT X
ENDPROGRAM`, "", "5\n")
}

func Test_Interp_Recursion(t *testing.T) {
	wantOut(t, `PROGRAM P
  FUNCTION Fact(n : INTEGER) RETURNS INTEGER
    IF n <= 1 THEN
      RETURN 1
    ENDIF
    RETURN n * Fact(n - 1)
  ENDFUNCTION
  OUTPUT Fact(10)
ENDPROGRAM`, "", "3628800\n")
}

func Test_Interp_MissingReturn(t *testing.T) {
	runErr(t, RuntimeError, `PROGRAM P
  FUNCTION F() RETURNS INTEGER
    DECLARE X : INTEGER
    X <- 1
  ENDFUNCTION
  OUTPUT F()
ENDPROGRAM`, "")
}

// --- numeric runtime -------------------------------------------------------

func Test_Interp_Overflow(t *testing.T) {
	runErr(t, RangeError, "PROGRAM P\nOUTPUT 2147483647 + 1\nENDPROGRAM", "")
	runErr(t, RuntimeError, "PROGRAM P\nOUTPUT 1 DIV 0\nENDPROGRAM", "")
	runErr(t, RuntimeError, "PROGRAM P\nOUTPUT 1 / 0\nENDPROGRAM", "")
	wantOut(t, "PROGRAM P\nOUTPUT 1 / 2\nENDPROGRAM", "", "0.5\n")
	wantOut(t, "PROGRAM P\nOUTPUT 2147483647 - 1 + 1\nENDPROGRAM", "", "2147483647\n")
}

func Test_Interp_DeterministicRand(t *testing.T) {
	out := run(t, `PROGRAM P
  OUTPUT RAND()
  OUTPUT RAND()
  OUTPUT RAND()
ENDPROGRAM`, "")
	state := int64(1)
	var want strings.Builder
	for i := 0; i < 3; i++ {
		state = (1103515245*state + 12345) % (1 << 31)
		want.WriteString(formatReal(float64(state) / (1 << 31)))
		want.WriteByte('\n')
	}
	if out != want.String() {
		t.Fatalf("want %q, got %q", want.String(), out)
	}

	// A second program starts from state 1 again.
	if again := run(t, "PROGRAM P\nOUTPUT RAND()\nENDPROGRAM", ""); !strings.HasPrefix(out, again[:len(again)-1]) {
		t.Fatalf("PRNG not reseeded: %q vs %q", out, again)
	}
}

// --- strings, chars, dates -------------------------------------------------

func Test_Interp_StringBuiltins(t *testing.T) {
	wantOut(t, `PROGRAM P
  OUTPUT LENGTH("hello")
  OUTPUT RIGHT("hello", 3)
  OUTPUT MID("hello", 2, 3)
  OUTPUT MID("hello", 1, 0) & "-"
  OUTPUT UCASE("a1z!")
  OUTPUT LCASE("A1Z!")
ENDPROGRAM`, "", "5\nllo\nell\n-\nA1Z!\na1z!\n")

	runErr(t, RangeError, `PROGRAM P
  OUTPUT RIGHT("hi", 3)
ENDPROGRAM`, "")
	runErr(t, RangeError, `PROGRAM P
  OUTPUT MID("hi", 0, 1)
ENDPROGRAM`, "")
}

func Test_Interp_Conversions(t *testing.T) {
	wantOut(t, `PROGRAM P
  OUTPUT INT(3.9)
  OUTPUT INT(-3.9)
  OUTPUT REAL(2) / 4.0
  OUTPUT CHAR(65)
  OUTPUT BOOLEAN("true")
  OUTPUT STRING(42) & "!"
  OUTPUT DATE("2024-02-29")
ENDPROGRAM`, "", "3\n-3\n0.5\nA\nTRUE\n42!\n2024-02-29\n")

	runErr(t, RangeError, "PROGRAM P\nOUTPUT CHAR(200)\nENDPROGRAM", "")
	runErr(t, RangeError, "PROGRAM P\nOUTPUT BOOLEAN(\"maybe\")\nENDPROGRAM", "")
	runErr(t, RangeError, "PROGRAM P\nOUTPUT DATE(\"2023-02-29\")\nENDPROGRAM", "")
}

func Test_Interp_Concat(t *testing.T) {
	wantOut(t, `PROGRAM P
  DECLARE C : CHAR
  C <- 'x'
  OUTPUT C & "y" & 'z'
ENDPROGRAM`, "", "xyz\n")
}

func Test_Interp_Comparisons(t *testing.T) {
	wantOut(t, `PROGRAM P
  OUTPUT "abc" < "abd"
  OUTPUT 'a' < 'b'
  OUTPUT DATE "2024-01-01" < DATE "2024-06-01"
  OUTPUT TRUE = FALSE
  OUTPUT 2 >= 2
ENDPROGRAM`, "", "TRUE\nTRUE\nTRUE\nFALSE\nTRUE\n")
}

func Test_Interp_Dates(t *testing.T) {
	// Default DATE value is 0001-01-01.
	wantOut(t, `PROGRAM P
  DECLARE D : DATE
  OUTPUT D
ENDPROGRAM`, "", "0001-01-01\n")
}

// --- enums & sets ----------------------------------------------------------

func Test_Interp_EnumsAndSets(t *testing.T) {
	wantOut(t, `PROGRAM P
  TYPE Colour = (Red, Green, Blue)
  DECLARE S : SET OF Colour
  DECLARE A : Colour
  A <- Green
  OUTPUT ORD(A)
  OUTPUT ORD(ENUMVALUE(Colour, 2))
  S <- [Red, Blue]
  OUTPUT SIZE(S)
  OUTPUT Green IN S
  OUTPUT Red IN S
  S <- S UNION [Green]
  OUTPUT SIZE(S)
  OUTPUT SIZE(S INTERSECT [Red, Green])
  OUTPUT SIZE(S DIFF [Red])
  OUTPUT A < Blue
ENDPROGRAM`, "", "1\n2\n2\nFALSE\nTRUE\n3\n2\n2\nTRUE\n")

	runErr(t, RangeError, `PROGRAM P
  TYPE Colour = (Red, Green, Blue)
  OUTPUT ORD(ENUMVALUE(Colour, 3))
ENDPROGRAM`, "")
}

func Test_Interp_SetCopyIsolation(t *testing.T) {
	wantOut(t, `PROGRAM P
  TYPE Colour = (Red, Green, Blue)
  DECLARE S : SET OF Colour
  DECLARE T : SET OF Colour
  S <- [Red]
  T <- S
  S <- S UNION [Green]
  OUTPUT SIZE(T)
ENDPROGRAM`, "", "1\n")
}

// --- input -----------------------------------------------------------------

func Test_Interp_Input(t *testing.T) {
	wantOut(t, `PROGRAM P
  DECLARE N : INTEGER
  DECLARE R : REAL
  DECLARE S : STRING
  DECLARE B : BOOLEAN
  DECLARE D : DATE
  DECLARE C : CHAR
  INPUT N, R, S, B, D, C
  OUTPUT N + 1
  OUTPUT R
  OUTPUT S
  OUTPUT NOT B
  OUTPUT D
  OUTPUT C
ENDPROGRAM`, "41 2.5 hello true 2024-02-29 q", "42\n2.5\nhello\nFALSE\n2024-02-29\nq\n")

	wantOut(t, `PROGRAM P
  TYPE Colour = (Red, Green, Blue)
  DECLARE A : Colour
  INPUT A
  OUTPUT ORD(A)
ENDPROGRAM`, "Blue", "2\n")

	runErr(t, RuntimeError, `PROGRAM P
  DECLARE N : INTEGER
  INPUT N
ENDPROGRAM`, "")
	runErr(t, RuntimeError, `PROGRAM P
  DECLARE N : INTEGER
  INPUT N
ENDPROGRAM`, "abc")
	runErr(t, RangeError, `PROGRAM P
  DECLARE N : INTEGER
  INPUT N
ENDPROGRAM`, "99999999999")
}

// --- classes ---------------------------------------------------------------

func Test_Interp_ClassCounter(t *testing.T) {
	wantOut(t, `PROGRAM P
  CLASS Counter
    PRIVATE
    DECLARE N : INTEGER
    PUBLIC
    PROCEDURE Inc()
      N <- N + 1
    ENDPROCEDURE
    FUNCTION Value() RETURNS INTEGER
      RETURN N
    ENDFUNCTION
  ENDCLASS
  DECLARE C : Counter
  C <- NEW Counter()
  CALL C.Inc()
  CALL C.Inc()
  OUTPUT C.Value()
ENDPROGRAM`, "", "2\n")
}

func Test_Interp_ClassReferenceCopy(t *testing.T) {
	wantOut(t, `PROGRAM P
  CLASS Box
    PUBLIC
    DECLARE V : INTEGER
  ENDCLASS
  DECLARE A : Box
  DECLARE B : Box
  A <- NEW Box()
  B <- A
  A.V <- 7
  OUTPUT B.V
ENDPROGRAM`, "", "7\n")
}

func Test_Interp_ConstructorsAndSuper(t *testing.T) {
	wantOut(t, `PROGRAM P
  CLASS Animal
    PUBLIC
    DECLARE Name : STRING
    CONSTRUCTOR (n : STRING)
      Name <- n
    ENDCONSTRUCTOR
    FUNCTION Describe() RETURNS STRING
      RETURN Name
    ENDFUNCTION
  ENDCLASS
  CLASS Dog INHERITS Animal
    PUBLIC
    CONSTRUCTOR (n : STRING)
      SUPER(n)
    ENDCONSTRUCTOR
    FUNCTION Describe() RETURNS STRING
      RETURN "dog " & SUPER.Describe()
    ENDFUNCTION
  ENDCLASS
  DECLARE D : Dog
  D <- NEW Dog("rex")
  OUTPUT D.Describe()
ENDPROGRAM`, "", "dog rex\n")
}

func Test_Interp_InheritedConstructor(t *testing.T) {
	// NEW on a class without its own constructor runs the nearest base one.
	wantOut(t, `PROGRAM P
  CLASS Base
    PUBLIC
    DECLARE N : INTEGER
    CONSTRUCTOR (n : INTEGER)
      N <- n
    ENDCONSTRUCTOR
  ENDCLASS
  CLASS Derived INHERITS Base
  ENDCLASS
  DECLARE D : Derived
  D <- NEW Derived(5)
  OUTPUT D.N
ENDPROGRAM`, "", "5\n")
}

func Test_Interp_MethodOnNull(t *testing.T) {
	runErr(t, RuntimeError, `PROGRAM P
  CLASS Box
    PUBLIC
    PROCEDURE Ping()
    ENDPROCEDURE
  ENDCLASS
  DECLARE B : Box
  CALL B.Ping()
ENDPROGRAM`, "")
}

func Test_Interp_RuntimeAccessControl(t *testing.T) {
	// A private base method stays inaccessible even when dispatch starts
	// from a derived object.
	runErr(t, AccessError, `PROGRAM P
  CLASS Base
    PRIVATE
    PROCEDURE Hidden()
    ENDPROCEDURE
  ENDCLASS
  CLASS Derived INHERITS Base
  ENDCLASS
  DECLARE D : Derived
  D <- NEW Derived()
  CALL D.Hidden()
ENDPROGRAM`, "")
}

// --- misc ------------------------------------------------------------------

func Test_Interp_DefaultValues(t *testing.T) {
	wantOut(t, `PROGRAM P
  TYPE Colour = (Red, Green, Blue)
  DECLARE N : INTEGER
  DECLARE R : REAL
  DECLARE B : BOOLEAN
  DECLARE S : STRING
  DECLARE E : Colour
  DECLARE SS : SET OF Colour
  OUTPUT N
  OUTPUT R
  OUTPUT B
  OUTPUT S & "|"
  OUTPUT ORD(E)
  OUTPUT SIZE(SS)
ENDPROGRAM`, "", "0\n0\nFALSE\n|\n0\n0\n")
}

func Test_Interp_ConstantsInExpressions(t *testing.T) {
	wantOut(t, `PROGRAM P
  CONSTANT N = 2 + 3
  CONSTANT Greeting = "hi " & "there"
  DECLARE A : ARRAY[1:N] OF INTEGER
  A[N] <- N * 2
  OUTPUT A[N]
  OUTPUT Greeting
ENDPROGRAM`, "", "10\nhi there\n")
}

func Test_Interp_BlockScopedLocals(t *testing.T) {
	// Block locals are recreated with defaults on every entry.
	wantOut(t, `PROGRAM P
  FOR i <- 1 TO 3
    DECLARE T : INTEGER
    T <- T + i
    OUTPUT T
  NEXT i
ENDPROGRAM`, "", "1\n2\n3\n")
}

func Test_Interp_NestedRoutineScope(t *testing.T) {
	wantOut(t, `PROGRAM P
  DECLARE Total : INTEGER
  PROCEDURE Add(n : INTEGER)
    Total <- Total + n
  ENDPROCEDURE
  CALL Add(2)
  CALL Add(3)
  OUTPUT Total
ENDPROGRAM`, "", "5\n")
}

func Test_Interp_OutputBufferedBeforeError(t *testing.T) {
	out, err := Run(`PROGRAM P
  OUTPUT "before"
  OUTPUT 1 DIV 0
ENDPROGRAM`, "", NewMemFS())
	if err == nil || err.Kind != RuntimeError {
		t.Fatalf("expected RuntimeError, got %v", err)
	}
	if out != "before\n" {
		t.Fatalf("buffered output lost: %q", out)
	}
}
