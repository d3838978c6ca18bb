package main

import "synctl/cmd"

func main() {
	cmd.Execute()
}
