package main

import "localkb/internal/cli"

func main() {
	cli.Execute()
}
