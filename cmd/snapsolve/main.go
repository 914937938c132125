package main

import "snapsolve/internal/cli"

func main() {
	cli.Execute()
}
