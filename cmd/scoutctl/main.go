package main

import "marketscout/cmd/scoutctl/commands"

func main() {
	commands.Execute()
}
