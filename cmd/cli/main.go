// Command cli is the entry point for the workgov CLI binary.
package main

import (
	"os"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"

	"workgov/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
