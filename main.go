package main

import "pyfreeze-tools/cmd"

func main() {
	cmd.Execute()
}
