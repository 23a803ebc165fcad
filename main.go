package main

import "tonearm/cmd"

func main() {
	cmd.Execute()
}
