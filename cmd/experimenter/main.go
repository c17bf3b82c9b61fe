package main

import "github.com/clive/experimenter/internal/cli"

func main() {
	cli.Execute()
}
