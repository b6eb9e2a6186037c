package main

import "github.com/ravi0dubey/racoon-detection/cmd"

func main() {
	cmd.Execute()
}
