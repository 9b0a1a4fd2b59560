package main

import (
	"os"

	"github.com/JonMunkholm/coach/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
