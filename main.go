package main

import "github.com/telehostca/chatbot-backend/cmd"

func main() {
	cmd.Execute()
}
