package main

import "github.com/rualca/librarian-agent/cmd"

func main() {
	cmd.Execute()
}
