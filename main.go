package main

import "github.com/AvaProtocol/ap-paymaster/cmd"

func main() {
	cmd.Execute()
}
