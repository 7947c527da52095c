package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is fine, the environment may be set otherwise
	_ = godotenv.Load()

	if err := newRootCmd(&app{}).Execute(); err != nil {
		os.Exit(1)
	}
}
