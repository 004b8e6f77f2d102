package main

import (
	"ttmlkit/cmd"
)

func main() {
	cmd.Execute()
}
