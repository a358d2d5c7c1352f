package main

import "github.com/jcdickinson/rbxdocs/cmd"

func main() {
	cmd.Execute()
}
