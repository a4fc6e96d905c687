package main

import "github.com/derickschaefer/periodic/cmd"

func main() {
	cmd.Execute()
}
