package main

import (
	"os"

	"github.com/gantrylabs/gantry/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
