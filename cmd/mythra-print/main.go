package main

import "github.com/ethangrabau/mythra-web/pkg/cli"

func main() {
	cli.Execute()
}
