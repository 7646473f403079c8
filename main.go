package main

import "nativec/cmd"

func main() {
	cmd.Execute()
}
