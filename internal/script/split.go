package script

import "strings"

// splitStatements cuts a script into expression statements on newlines and
// semicolons, skipping blanks and // comments. Separators and comment
// markers inside string literals are preserved — authored snippets carry
// URLs and message text.
func splitStatements(src string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		quote   byte // active string delimiter, 0 when outside literals
		escaped bool
	)

	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if s != "" {
			stmts = append(stmts, s)
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case escaped:
			escaped = false
			cur.WriteByte(c)
		case quote != 0:
			if c == '\\' {
				escaped = true
			} else if c == quote {
				quote = 0
			}
			cur.WriteByte(c)
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			// Comment runs to end of line; the newline then flushes.
			for i < len(src) && src[i] != '\n' {
				i++
			}
			flush()
		case c == '\n' || c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	return stmts
}
