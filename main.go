package main

import "github.com/CraigKelly/tempermc/cmd"

func main() {
	cmd.Execute()
}
