package main

import "github.com/superplanehq/gauth/pkg/cli"

func main() {
	cli.Execute()
}
