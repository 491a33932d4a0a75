package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/prudhvinik1/smsledger/internal/commands"
)

func main() {
	godotenv.Load()

	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
