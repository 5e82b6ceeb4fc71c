package main

import "mooshihub/cmd/cli/command"

func main() {
	command.Execute()
}
