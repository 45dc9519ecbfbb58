package main

import "github.com/agentic-research/fingerpack/cmd"

func main() {
	cmd.Execute()
}
