package main

import "github.com/ayusman/nayana/internal/cli"

func main() {
	cli.Execute()
}
