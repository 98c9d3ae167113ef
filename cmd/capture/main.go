package main

import "github.com/fakeyudi/capturectl/cmd"

func main() {
	cmd.Execute()
}
