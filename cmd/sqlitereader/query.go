package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-colorable"
	"github.com/posener/complete"

	"github.com/joeandaverde/litescan"
)

// QueryCommand opens a database file, runs one SQL statement through the
// core's public façade, and prints the result as a table or CSV. It
// composes litescan and the tsql front-end; it contains no traversal or
// decoding logic of its own.
type QueryCommand struct{}

func (c *QueryCommand) Help() string {
	helpText := `
Usage: sqlitereader query [options] <path> <sql>

Options:

	-format=table	Output format: table or csv
`
	return strings.TrimSpace(helpText)
}

func (c *QueryCommand) Synopsis() string {
	return "Run a SELECT statement against a SQLite file"
}

func (c *QueryCommand) Run(args []string) int {
	var format string

	cmdFlags := flag.NewFlagSet("query", flag.ContinueOnError)
	cmdFlags.StringVar(&format, "format", "table", "output format: table or csv")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}

	rest := cmdFlags.Args()
	if len(rest) != 2 {
		fmt.Println(c.Help())
		return 1
	}
	path, sql := rest[0], rest[1]

	db, err := litescan.Open(path)
	if err != nil {
		fmt.Printf("Error opening %s: %v\n", path, err)
		return 1
	}
	defer db.Close()

	rows, err := db.ExecuteQuery(sql)
	if err != nil {
		fmt.Printf("Error executing query: %v\n", err)
		return 1
	}

	switch format {
	case "csv":
		printCSV(rows)
	default:
		printTable(rows)
	}
	return 0
}

func (c *QueryCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictFiles("*.db")
}

func (c *QueryCommand) AutocompleteFlags() complete.Flags {
	return complete.Flags{
		"-format": complete.PredictSet("table", "csv"),
	}
}

func printTable(rows []litescan.Row) {
	out := colorable.NewColorableStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "(no rows)")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(rows[0].Columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row.Values))
		for i, v := range row.Values {
			cells[i] = v.String()
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
}

func printCSV(rows []litescan.Row) {
	if len(rows) == 0 {
		return
	}
	w := csv.NewWriter(colorable.NewColorableStdout())
	_ = w.Write(rows[0].Columns)
	for _, row := range rows {
		cells := make([]string, len(row.Values))
		for i, v := range row.Values {
			cells[i] = v.String()
		}
		_ = w.Write(cells)
	}
	w.Flush()
}
