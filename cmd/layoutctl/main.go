package main

import (
	"github.com/joho/godotenv"

	"github.com/onnwee/nodelayout/cmd/layoutctl/cmd"
)

func main() {
	_ = godotenv.Load()
	cmd.Execute()
}
