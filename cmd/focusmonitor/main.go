package main

import "github.com/bryanchriswhite/FocusMonitor/cmd/focusmonitor/commands"

func main() {
	commands.Execute()
}
