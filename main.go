package main

import "github.com/liamg/lancache/cmd"

func main() {
	cmd.Execute()
}
