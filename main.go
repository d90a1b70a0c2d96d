package main

import "card-gateway/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
