package main

import (
	"marketintel/cmd/cmd"
)

func main() {
	cmd.Execute()
}
