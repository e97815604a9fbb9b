package main

import "github.com/jmehdipour/staffhooks/cmd"

func main() {
	cmd.Execute()
}
