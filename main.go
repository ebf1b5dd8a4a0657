package main

import "github.com/reserve-protocol/ethdebug/cmd"

func main() {
	cmd.Execute()
}
