package main

import "github.com/subsecond-dev/subsecond/cmd"

func main() {
	cmd.Execute()
}
