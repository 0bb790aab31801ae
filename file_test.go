package lucid

import (
	"testing"

	"github.com/nalgeon/be"
)

func Test_TextFile_WriteThenRead(t *testing.T) {
	fs := NewMemFS()
	out, err := Run(`PROGRAM P
  DECLARE F : TEXTFILE
  DECLARE N : INTEGER
  DECLARE Total : INTEGER
  OPENFILE(F, "nums.txt", "WRITE")
  WRITEFILE(F, 10)
  WRITEFILE(F, 32)
  CLOSEFILE(F)
  OPENFILE(F, "nums.txt", "READ")
  Total <- 0
  WHILE NOT EOF(F) DO
    READFILE(F, N)
    Total <- Total + N
  ENDWHILE
  CLOSEFILE(F)
  OUTPUT Total
ENDPROGRAM`, "", fs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	be.Equal(t, out, "42\n")
	data, ok := fs.ReadFile("nums.txt")
	be.True(t, ok)
	be.Equal(t, string(data), "10\n32\n")
}

func Test_TextFile_Append(t *testing.T) {
	fs := NewMemFS()
	fs.WriteFile("log.txt", []byte("first\n"))
	_, err := Run(`PROGRAM P
  DECLARE F : TEXTFILE
  OPENFILE(F, "log.txt", "APPEND")
  WRITEFILE(F, "second")
  CLOSEFILE(F)
ENDPROGRAM`, "", fs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	data, _ := fs.ReadFile("log.txt")
	be.Equal(t, string(data), "first\nsecond\n")
}

func Test_TextFile_ReadTrimsWhitespace(t *testing.T) {
	fs := NewMemFS()
	fs.WriteFile("in.txt", []byte("  41  \r\n  hello \n"))
	out, err := Run(`PROGRAM P
  DECLARE F : TEXTFILE
  DECLARE N : INTEGER
  DECLARE S : STRING
  OPENFILE(F, "in.txt", "READ")
  READFILE(F, N)
  READFILE(F, S)
  CLOSEFILE(F)
  OUTPUT N + 1
  OUTPUT S
ENDPROGRAM`, "", fs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	be.Equal(t, out, "42\nhello\n")
}

func Test_TextFile_Errors(t *testing.T) {
	runErr(t, FileError, `PROGRAM P
  DECLARE F : TEXTFILE
  OPENFILE(F, "missing.txt", "READ")
ENDPROGRAM`, "")
	runErr(t, FileError, `PROGRAM P
  DECLARE F : TEXTFILE
  OPENFILE(F, "x.txt", "SIDEWAYS")
ENDPROGRAM`, "")
	runErr(t, FileError, `PROGRAM P
  DECLARE F : TEXTFILE
  DECLARE S : STRING
  READFILE(F, S)
ENDPROGRAM`, "")
	runErr(t, FileError, `PROGRAM P
  DECLARE F : TEXTFILE
  OPENFILE(F, "x.txt", "WRITE")
  WRITEFILE(F, "a")
  CLOSEFILE(F)
  OPENFILE(F, "x.txt", "READ")
  WRITEFILE(F, "b")
ENDPROGRAM`, "")
	// Reading past the last line.
	fs := NewMemFS()
	fs.WriteFile("one.txt", []byte("only\n"))
	_, err := Run(`PROGRAM P
  DECLARE F : TEXTFILE
  DECLARE S : STRING
  OPENFILE(F, "one.txt", "READ")
  READFILE(F, S)
  READFILE(F, S)
ENDPROGRAM`, "", fs)
	if err == nil || err.Kind != FileError {
		t.Fatalf("expected FileError, got %v", err)
	}
}

func Test_TextFile_ModeIsCaseInsensitive(t *testing.T) {
	fs := NewMemFS()
	_, err := Run(`PROGRAM P
  DECLARE F : TEXTFILE
  OPENFILE(F, "a.txt", "write")
  WRITEFILE(F, "x")
  CLOSEFILE(F)
ENDPROGRAM`, "", fs)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	data, _ := fs.ReadFile("a.txt")
	be.Equal(t, string(data), "x\n")
}

func Test_RandomFile_EOFAndErrors(t *testing.T) {
	wantOut(t, `PROGRAM P
  TYPE Rec = RECORD
    N : INTEGER
  ENDRECORD
  DECLARE RF : RANDOMFILE OF Rec
  DECLARE R : Rec
  OPENFILE(RF, "r.bin", "RANDOM")
  OUTPUT EOF(RF)
  R.N <- 1
  PUTRECORD(RF, R)
  PUTRECORD(RF, R)
  SEEK(RF, 1)
  OUTPUT EOF(RF)
  SEEK(RF, 3)
  OUTPUT EOF(RF)
  CLOSEFILE(RF)
ENDPROGRAM`, "", "TRUE\nFALSE\nTRUE\n")

	runErr(t, FileError, `PROGRAM P
  TYPE Rec = RECORD
    N : INTEGER
  ENDRECORD
  DECLARE RF : RANDOMFILE OF Rec
  DECLARE R : Rec
  OPENFILE(RF, "r.bin", "RANDOM")
  GETRECORD(RF, R)
ENDPROGRAM`, "")

	runErr(t, FileError, `PROGRAM P
  TYPE Rec = RECORD
    N : INTEGER
  ENDRECORD
  DECLARE RF : RANDOMFILE OF Rec
  OPENFILE(RF, "r.bin", "RANDOM")
  SEEK(RF, 0)
ENDPROGRAM`, "")

	runErr(t, FileError, `PROGRAM P
  TYPE Rec = RECORD
    N : INTEGER
  ENDRECORD
  DECLARE RF : RANDOMFILE OF Rec
  OPENFILE(RF, "r.bin", "READ")
ENDPROGRAM`, "")
}

func Test_RandomFile_OverwriteInPlace(t *testing.T) {
	wantOut(t, `PROGRAM P
  TYPE Rec = RECORD
    N : INTEGER
  ENDRECORD
  DECLARE RF : RANDOMFILE OF Rec
  DECLARE R : Rec
  OPENFILE(RF, "r.bin", "RANDOM")
  R.N <- 1
  PUTRECORD(RF, R)
  R.N <- 2
  PUTRECORD(RF, R)
  R.N <- 99
  SEEK(RF, 1)
  PUTRECORD(RF, R)
  SEEK(RF, 1)
  GETRECORD(RF, R)
  OUTPUT R.N
  GETRECORD(RF, R)
  OUTPUT R.N
ENDPROGRAM`, "", "99\n2\n")
}

func Test_Codec_RoundTrip(t *testing.T) {
	rec := &Type{Kind: TRecord, Name: "R", Fields: []FieldType{
		{Name: "N", Type: typeInteger},
		{Name: "Flag", Type: typeBoolean},
		{Name: "Vals", Type: &Type{Kind: TArray, Bounds: []Bounds{{Low: 1, High: 2}}, Elem: typeReal}},
		{Name: "C", Type: typeChar},
		{Name: "D", Type: typeDate},
	}}
	be.Equal(t, recordSize(rec), 4+1+16+4+4)

	v := defaultValue(rec)
	rv := v.Data.(*RecordVal)
	rv.Cells[0].V = intVal(-12345)
	rv.Cells[1].V = boolVal(true)
	arr := rv.Cells[2].V.Data.(*ArrayVal)
	arr.Cells[0].V = realVal(1.5)
	arr.Cells[1].V = realVal(-2.25)
	rv.Cells[3].V = charVal('Z')
	rv.Cells[4].V = dateVal(daysFromYMD(2024, 2, 29))

	data := encodeValue(nil, v)
	be.Equal(t, len(data), recordSize(rec))

	got, off := decodeValue(data, 0, rec, 1)
	be.Equal(t, off, len(data))
	gv := got.Data.(*RecordVal)
	be.Equal(t, gv.Cells[0].V.asInt(), int32(-12345))
	be.Equal(t, gv.Cells[1].V.asBool(), true)
	garr := gv.Cells[2].V.Data.(*ArrayVal)
	be.Equal(t, garr.Cells[0].V.asReal(), 1.5)
	be.Equal(t, garr.Cells[1].V.asReal(), -2.25)
	be.Equal(t, gv.Cells[3].V.asChar(), 'Z')
	be.Equal(t, formatDate(gv.Cells[4].V.Data.(int32)), "2024-02-29")
}

func Test_Codec_LittleEndian(t *testing.T) {
	data := encodeValue(nil, intVal(1))
	be.Equal(t, data, []byte{1, 0, 0, 0})
	data = encodeValue(nil, charVal('A'))
	be.Equal(t, data, []byte{65, 0, 0, 0})
	data = encodeValue(nil, boolVal(true))
	be.Equal(t, data, []byte{1})
}
