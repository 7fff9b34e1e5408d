package main

import "github.com/theirongolddev/costfall/cmd"

func main() {
	cmd.Execute()
}
