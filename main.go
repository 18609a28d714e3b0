package main

import "github.com/ctwhite/yield/cmd"

func main() {
	cmd.Execute()
}
