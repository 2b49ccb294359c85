package main

import "github.com/aidar/taskhub/cmd/api/cmd"

func main() {
	cmd.Execute()
}
