// Command slamd ranks candidate materials for the next lab experiment.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/slamd/internal/cli"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
