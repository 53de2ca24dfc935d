package main

import "note-tracker/cmd"

func main() {
	cmd.Execute()
}
