package main

import "github.com/stevehiehn/deployspec/cmd"

func main() {
	cmd.Execute()
}
