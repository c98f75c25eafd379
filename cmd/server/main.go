package main // entry point of the warp server

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/sdoering/warp/internal/cli"
)

func main() {
	_ = godotenv.Load() // a .env file is optional
	os.Exit(cli.Execute())
}
