package main

import "go-stems/cmd"

func main() {
	cmd.Execute()
}
