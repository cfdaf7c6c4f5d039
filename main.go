package main

import "github.com/Digital-Shane/tidy-sort/internal/cmd"

func main() {
	cmd.Execute()
}
