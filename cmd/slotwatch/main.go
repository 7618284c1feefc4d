package main

import "slotwatch/cmd/slotwatch/commands"

func main() {
	commands.Execute()
}
