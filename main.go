package main

import "recipebox/cli"

func main() {
	cli.Execute()
}
