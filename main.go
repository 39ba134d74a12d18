package main

import "github.com/pkgarch/archscan/cmd/cli"

func main() {
	cli.Main()
}
