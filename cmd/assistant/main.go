package main

import (
	"os"

	"github.com/yipson/mental-health-assistant/cmd/assistant/commands"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
