package main

import "github.com/lanarcade/gamehub/internal/cli"

func main() {
	cli.Execute()
}
