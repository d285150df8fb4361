// Command fileproc inspects delimited text files and loads them into
// Postgres from the command line.
//
//	fileproc inspect people.csv.gz
//	fileproc rows --headers --offset 100 --limit 20 people.csv
//	fileproc load --table staging.people --create people.csv
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; unlike the server, real environment variables win.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
