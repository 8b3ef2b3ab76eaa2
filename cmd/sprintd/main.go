package main

import "github.com/marcus/sprintd/cmd/sprintd/commands"

func main() {
	commands.Execute()
}
