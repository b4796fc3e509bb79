package parser

import (
	"github.com/joeandaverde/litescan/tsql/ast"
	"github.com/joeandaverde/litescan/tsql/lexer"
	"github.com/joeandaverde/litescan/tsql/scan"
)

func parseCreateIndex(scanner scan.TinyScanner) (*ast.CreateIndexStatement, error) {
	createIndexStatement := ast.CreateIndexStatement{}

	columnList := parensCommaSep(allX(
		optWS,
		requiredToken(lexer.TokenIdentifier, func(tokens []lexer.Token) {
			createIndexStatement.Columns = append(createIndexStatement.Columns, tokens[0].Text)
		}),
		optWS,
	))

	ok, _ := allX(
		keyword(lexer.TokenCreate),
		optional(allX(keyword(lexer.TokenUnique)), func(tokens []lexer.Token) {
			createIndexStatement.Unique = true
		}),
		keyword(lexer.TokenIndex),
		optional(
			allX(keyword(lexer.TokenIf), keyword(lexer.TokenNot), keyword(lexer.TokenExists)),
			func(tokens []lexer.Token) {
				createIndexStatement.IfNotExists = true
			}),
		ident(func(name string) {
			createIndexStatement.IndexName = name
		}),
		keyword(lexer.TokenOn),
		ident(func(name string) {
			createIndexStatement.TableName = name
		}),
		columnList,
	)(scanner)

	if ok {
		createIndexStatement.RawText = scanner.Text()
		return &createIndexStatement, nil
	}

	return nil, nil
}
