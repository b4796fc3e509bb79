package parser

import (
	"github.com/joeandaverde/litescan/tsql/ast"
	"github.com/joeandaverde/litescan/tsql/lexer"
	"github.com/joeandaverde/litescan/tsql/scan"
)

func parseSelect(scanner scan.TinyScanner) (*ast.SelectStatement, error) {
	selectStatement := ast.SelectStatement{}

	whereClause := allX(
		keyword(lexer.TokenWhere),
		committed("WHERE", makeExpressionParser(func(filter ast.Expression) {
			selectStatement.Filter = filter
		})),
	)

	orderByClause := allX(
		keyword(lexer.TokenOrder),
		committed("ORDER BY", keyword(lexer.TokenBy)),
		committed("ORDER BY TERMS", commaSeparated(all([]parserFn{
			optWS,
			requiredToken(lexer.TokenIdentifier, nil),
			optional(allX(
				reqWS,
				oneOf([]parserFn{token(lexer.TokenAsc), token(lexer.TokenDesc)}, nil),
			), nil),
			optWS,
		}, func(tokens [][]lexer.Token) {
			term := ast.OrderingTerm{Column: tokens[1][0].Text}
			if len(tokens[2]) > 0 {
				for _, tok := range tokens[2] {
					if tok.Kind == lexer.TokenDesc {
						term.Descending = true
					}
				}
			}
			selectStatement.OrderBy = append(selectStatement.OrderBy, term)
		}))),
	)

	limitClause := allX(
		keyword(lexer.TokenLimit),
		committed("LIMIT", requiredToken(lexer.TokenNumber, func(tokens []lexer.Token) {
			n := parseInt64(tokens[0].Text)
			selectStatement.Limit = &n
		})),
		optionalX(allX(
			keyword(lexer.TokenOffset),
			committed("OFFSET", requiredToken(lexer.TokenNumber, func(tokens []lexer.Token) {
				n := parseInt64(tokens[0].Text)
				selectStatement.Offset = &n
			})),
		)),
	)

	ok, _ := allX(
		committed("SELECT", keyword(lexer.TokenSelect)),
		committed("COLUMNS", commaSeparated(
			oneOf([]parserFn{
				token(lexer.TokenIdentifier),
				token(lexer.TokenAsterisk),
			}, func(tokens []lexer.Token) {
				selectStatement.Columns = append(selectStatement.Columns, tokens[0].Text)
			}),
		)),
		committed("FROM", keyword(lexer.TokenFrom)),
		committed("RELATIONS", commaSeparated(
			all([]parserFn{
				committed("RELATION", token(lexer.TokenIdentifier)),
				optionalX(allX(
					reqWS,
					token(lexer.TokenIdentifier),
				)),
			}, func(tokens [][]lexer.Token) {
				if len(tokens[1]) > 0 {
					selectStatement.From = append(selectStatement.From, ast.TableAlias{
						Name:  tokens[0][0].Text,
						Alias: tokens[1][1].Text,
					})
				} else {
					selectStatement.From = append(selectStatement.From, ast.TableAlias{
						Name:  tokens[0][0].Text,
						Alias: "",
					})
				}
			}),
		)),
		optionalX(whereClause),
		optionalX(orderByClause),
		optionalX(limitClause),
		optWS,
		eofParser,
	)(scanner)

	if ok {
		return &selectStatement, nil
	}

	return nil, nil
}

func parseInt64(s string) int64 {
	var n int64
	for _, r := range s {
		n = n*10 + int64(r-'0')
	}
	return n
}
