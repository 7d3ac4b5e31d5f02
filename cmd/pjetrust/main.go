package main

import "github.com/arueira/pjetrust/cmd/pjetrust/cmd"

func main() {
	cmd.Execute()
}
