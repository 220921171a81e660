package main

import "github.com/supportbot-dev/supportbot/internal/cli"

func main() {
	cli.Execute()
}
