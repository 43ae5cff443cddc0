package main

import "github.com/fmuoria/fair-hire/internal/cli"

func main() {
	cli.Execute()
}
