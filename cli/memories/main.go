package main

import (
	"os"

	"github.com/joho/godotenv"

	memoriescmder "github.com/memories-sh/memories-go/cmd/memories"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cmd := memoriescmder.NewMemoriesCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
