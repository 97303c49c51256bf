package main

import (
	"os"

	"github.com/joho/godotenv"

	servecmder "github.com/memories-sh/memories-go/cmd/memories/serve"
)

func main() {
	_ = godotenv.Load()

	cmd := servecmder.NewServeCmd()
	cmd.Use = "memoriesd"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.memories or ~/.memories)")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
