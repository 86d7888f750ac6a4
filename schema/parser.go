package schema

import (
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
)

var parser = participle.MustBuild[file](
	participle.Lexer(schemaLexer),
	participle.Elide("Whitespace", "Newline", "Comment", "DocComment", "MultiLineComment"),
	participle.Unquote("String"),
	participle.UseLookahead(10),
)

// parse reads the raw parse tree from r.
func parse(filename string, r io.Reader) (*file, error) {
	return parser.Parse(filename, r)
}

// parseString parses a schema held in memory.
func parseString(filename, input string) (*file, error) {
	return parse(filename, strings.NewReader(input))
}
