// Command loomctl administers loom-managed databases from a declarative
// schema file: it validates schemas and creates or drops the declared
// tables.
package main

import (
	"fmt"
	"os"

	// Database drivers selectable via --dialect.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
