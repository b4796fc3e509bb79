package tsql

import (
	"github.com/joeandaverde/litescan/tsql/ast"
	"github.com/joeandaverde/litescan/tsql/parser"
)

// Parse parses TinySQL language and produces an AST.
func Parse(sql string) (ast.Statement, error) {
	return parser.ParseStatement(sql)
}
