// runner.go: pipeline entry points and the .prsd container format.
//
// Run executes a single program source. RunDocument handles a .prsd text
// document: prose may interleave with fenced code blocks opened by a line
// whose trimmed content is exactly ":::prescribe" and closed by ":::". The
// blocks execute in order as independent programs — no variables, heap or
// file handles carry over — sharing only the stdin token cursor and the
// file system. A document with no fences is one block. Execution stops at
// the first diagnostic; everything written to stdout up to that point is
// still returned.
package lucid

import "strings"

const (
	fenceOpen  = ":::prescribe"
	fenceClose = ":::"
)

// Run parses, checks and executes one program. The returned string is the
// program's stdout, surfaced even when a diagnostic is also returned.
func Run(src, stdin string, fs FileSystem) (string, *Error) {
	out, _, err := runTokens(src, strings.Fields(stdin), fs)
	return out, err
}

// RunDocument executes every code block of a .prsd document in order.
func RunDocument(doc, stdin string, fs FileSystem) (string, *Error) {
	toks := strings.Fields(stdin)
	var out strings.Builder
	for _, block := range ExtractBlocks(doc) {
		text, consumed, err := runTokens(block, toks, fs)
		out.WriteString(text)
		if err != nil {
			return out.String(), err
		}
		toks = toks[consumed:]
	}
	return out.String(), nil
}

func runTokens(src string, toks []string, fs FileSystem) (string, int, *Error) {
	prog, perr := Parse(src)
	if perr != nil {
		return "", 0, perr
	}
	info, cerr := Check(prog)
	if cerr != nil {
		return "", 0, cerr
	}
	in := newInterp(prog, info, toks, fs)
	out, rerr := in.run()
	return out, in.stdinPos, rerr
}

// ExtractBlocks returns the fenced code blocks of a document, in order. A
// document without a single opening fence is treated as one block holding
// the whole text. An unterminated fence runs to end of document.
func ExtractBlocks(doc string) []string {
	lines := strings.Split(doc, "\n")
	var blocks []string
	var cur []string
	inBlock := false
	for _, line := range lines {
		switch {
		case !inBlock && strings.TrimSpace(line) == fenceOpen:
			inBlock = true
			cur = nil
		case inBlock && strings.TrimSpace(line) == fenceClose:
			inBlock = false
			blocks = append(blocks, strings.Join(cur, "\n"))
		case inBlock:
			cur = append(cur, line)
		}
	}
	if inBlock {
		blocks = append(blocks, strings.Join(cur, "\n"))
	}
	if blocks == nil {
		return []string{doc}
	}
	return blocks
}
