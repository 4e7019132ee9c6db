// Command analyze opens recorded self-play parquet batches with DuckDB
// and reports summary statistics over them, the way viewer/db.go opens
// scraped Battlesnake replays with the same sql.Open("duckdb", ...)
// pattern for its own domain.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	_ "github.com/duckdb/duckdb-go/v2"
)

func main() {
	dataGlob := flag.String("data", "./data/*.parquet", "glob of parquet batch files to analyze")
	query := flag.String("query", "", "run this SQL query instead of the default summary (table name: rows)")
	flag.Parse()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		log.Fatalf("analyze: open duckdb: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA threads=4"); err != nil {
		log.Fatalf("analyze: configure duckdb: %v", err)
	}

	view := fmt.Sprintf("create view rows as select * from read_parquet('%s')", *dataGlob)
	if _, err := db.Exec(view); err != nil {
		log.Fatalf("analyze: create view over %q: %v", *dataGlob, err)
	}

	sqlText := *query
	if sqlText == "" {
		sqlText = `
			select
				count(distinct game_id) as games,
				count(*) as rows,
				avg(outcome) as avg_outcome,
				avg(value) as avg_root_value
			from rows
		`
	}

	rows, err := db.Query(sqlText)
	if err != nil {
		log.Fatalf("analyze: query: %v", err)
	}
	defer rows.Close()

	if err := printRows(rows); err != nil {
		log.Fatalf("analyze: print results: %v", err)
	}
}

func printRows(rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	values := make([]any, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}

	fmt.Println(cols)
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return err
		}
		fmt.Println(values)
	}
	return rows.Err()
}
