package main

import "github.com/agusx1211/usagebar/internal/cli"

func main() {
	cli.Execute()
}
