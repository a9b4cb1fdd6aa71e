package main

import (
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/FuzzyCleanse/internal/cli"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
