package patch

// Parser for the "*** Begin Patch" edit script format, built on the
// github.com/viant/parsly tokenizer. A script is a sequence of file
// operations (add, delete, update) where update operations carry one or more
// @@ chunks of context, removed and added lines.

import (
	"fmt"
	"strings"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Op is one high-level file operation within a script.
type Op interface{ opMarker() }

// AddOp creates a file (*** Add File: path).
type AddOp struct {
	Path     string
	Contents string
}

func (AddOp) opMarker() {}

// DeleteOp removes a file (*** Delete File: path).
type DeleteOp struct{ Path string }

func (DeleteOp) opMarker() {}

// UpdateOp rewrites parts of a file (*** Update File: path), optionally
// moving it (*** Move to: path).
type UpdateOp struct {
	Path     string
	MovePath string
	Chunks   []Chunk
}

func (UpdateOp) opMarker() {}

// Chunk is one contiguous edit within an UpdateOp. Context lines appear in
// both OldLines and NewLines, without their leading marker.
type Chunk struct {
	Context  string
	OldLines []string
	NewLines []string
	AtEOF    bool
}

const (
	tScriptBegin = iota + 1
	tScriptEnd
	tOpAdd
	tOpDelete
	tOpUpdate
	tOpMoveTo
	tChunkWithContext
	tChunkBare
)

var (
	tokWS          = parsly.NewToken(0, "WS", matcher.NewWhiteSpace())
	tokScriptBegin = parsly.NewToken(tScriptBegin, "BeginPatch", matcher.NewFragment("*** Begin Patch"))
	tokScriptEnd   = parsly.NewToken(tScriptEnd, "EndPatch", matcher.NewFragment("*** End Patch"))
	tokOpAdd       = parsly.NewToken(tOpAdd, "AddFile", matcher.NewFragment("*** Add File:"))
	tokOpDelete    = parsly.NewToken(tOpDelete, "DeleteFile", matcher.NewFragment("*** Delete File:"))
	tokOpUpdate    = parsly.NewToken(tOpUpdate, "UpdateFile", matcher.NewFragment("*** Update File:"))
	tokOpMoveTo    = parsly.NewToken(tOpMoveTo, "MoveTo", matcher.NewFragment("*** Move to:"))
	tokChunkCtx    = parsly.NewToken(tChunkWithContext, "ChunkCtx", matcher.NewFragment("@@ "))
	tokChunkBare   = parsly.NewToken(tChunkBare, "ChunkBare", matcher.NewFragment("@@"))
)

// ParseScript parses a complete edit script into its operations.
func ParseScript(text string) ([]Op, error) {
	p := &scriptParser{cursor: parsly.NewCursor("patch", []byte(strings.TrimSpace(text)), 0)}
	return p.parse()
}

// IsScript reports whether text looks like an edit script rather than a
// unified diff.
func IsScript(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "*** Begin Patch")
}

type scriptParser struct {
	cursor *parsly.Cursor
}

func (p *scriptParser) parse() ([]Op, error) {
	cur := p.cursor
	if cur.MatchOne(tokScriptBegin).Code != tScriptBegin {
		return nil, cur.NewError(tokScriptBegin)
	}
	p.line()

	var ops []Op
	for {
		match := cur.MatchAfterOptional(tokWS, tokScriptEnd, tokOpAdd, tokOpDelete, tokOpUpdate)
		switch match.Code {
		case tScriptEnd:
			p.line()
			cur.MatchOne(tokWS)
			if cur.HasMore() {
				return nil, fmt.Errorf("unexpected content after '*** End Patch'")
			}
			return ops, nil
		case tOpAdd:
			ops = append(ops, p.parseAdd())
		case tOpDelete:
			ops = append(ops, DeleteOp{Path: strings.TrimSpace(p.line())})
		case tOpUpdate:
			op, err := p.parseUpdate()
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		case parsly.EOF:
			return nil, fmt.Errorf("unexpected end of patch, missing '*** End Patch'")
		default:
			return nil, cur.NewError(tokOpAdd, tokOpDelete, tokOpUpdate, tokScriptEnd)
		}
	}
}

func (p *scriptParser) parseAdd() AddOp {
	path := strings.TrimSpace(p.line())
	var contents strings.Builder
	for {
		line := p.peek()
		if len(line) == 0 || line[0] != '+' {
			break
		}
		p.advance(1)
		contents.WriteString(p.line())
		contents.WriteByte('\n')
	}
	return AddOp{Path: path, Contents: contents.String()}
}

func (p *scriptParser) parseUpdate() (UpdateOp, error) {
	cur := p.cursor
	op := UpdateOp{Path: strings.TrimSpace(p.line())}
	if cur.MatchAfterOptional(tokWS, tokOpMoveTo).Code == tOpMoveTo {
		op.MovePath = strings.TrimSpace(p.line())
	}

	first := true
	for {
		if strings.HasPrefix(p.peek(), "***") {
			break
		}
		var chunk Chunk
		switch cur.MatchAfterOptional(tokWS, tokChunkCtx, tokChunkBare).Code {
		case tChunkWithContext:
			chunk.Context = strings.TrimSpace(p.line())
		case tChunkBare:
			p.line()
		default:
			if !first {
				return UpdateOp{}, fmt.Errorf("expected @@ header in update for %v", op.Path)
			}
		}
		first = false

		if err := p.parseChunkBody(&chunk); err != nil {
			return UpdateOp{}, err
		}
		if len(chunk.OldLines) == 0 && len(chunk.NewLines) == 0 {
			return UpdateOp{}, fmt.Errorf("empty update chunk for %v", op.Path)
		}
		op.Chunks = append(op.Chunks, chunk)
		if !strings.HasPrefix(p.peek(), "@@") {
			break
		}
	}
	return op, nil
}

func (p *scriptParser) parseChunkBody(chunk *Chunk) error {
	cur := p.cursor
	for cur.HasMore() {
		line := p.peek()
		switch {
		case strings.HasPrefix(line, "*** End of File"):
			chunk.AtEOF = true
			p.line()
			return nil
		case strings.HasPrefix(line, "@@"), strings.HasPrefix(line, "***"):
			return nil
		case len(line) == 0:
			p.line()
			chunk.OldLines = append(chunk.OldLines, "")
			chunk.NewLines = append(chunk.NewLines, "")
		case line[0] == '+':
			p.advance(1)
			chunk.NewLines = append(chunk.NewLines, p.line())
		case line[0] == '-':
			p.advance(1)
			chunk.OldLines = append(chunk.OldLines, p.line())
		case line[0] == ' ':
			p.advance(1)
			text := p.line()
			chunk.OldLines = append(chunk.OldLines, text)
			chunk.NewLines = append(chunk.NewLines, text)
		default:
			return nil
		}
	}
	return nil
}

// line consumes up to and including the next newline, returning the text
// before it.
func (p *scriptParser) line() string {
	cur := p.cursor
	start := cur.Pos
	for cur.Pos < cur.InputSize {
		if cur.Input[cur.Pos] == '\n' {
			text := string(cur.Input[start:cur.Pos])
			cur.Pos++
			return text
		}
		cur.Pos++
	}
	return string(cur.Input[start:])
}

// peek returns the remainder of the current line without consuming it.
func (p *scriptParser) peek() string {
	cur := p.cursor
	end := cur.Pos
	for end < cur.InputSize && cur.Input[end] != '\n' {
		end++
	}
	return string(cur.Input[cur.Pos:end])
}

func (p *scriptParser) advance(n int) {
	p.cursor.Pos += n
}
