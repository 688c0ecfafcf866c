package main

import "github.com/obrafin/obrafin/cmd"

func main() {
	cmd.Execute()
}
