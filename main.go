package main

import "github.com/theirongolddev/plotlog/cmd"

func main() {
	cmd.Execute()
}
