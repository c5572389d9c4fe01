package main

import "netlens/internal/cli"

func main() {
	cli.Execute()
}
