package main

import (
	"os"

	"nyein/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
