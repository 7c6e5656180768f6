// Command bomsync runs BOM analytics maintenance from the shell: backfills,
// single-order syncs, cleanup and status reports.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cmd := NewRootCommand(nil)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errOrdersFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
