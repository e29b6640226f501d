package main

import "github.com/AlikanakelaKarwowski/emularr/cmd"

func main() {
	cmd.Execute()
}
