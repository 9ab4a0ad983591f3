package main

import "chat-client/cmd"

func main() {
	cmd.Execute()
}
