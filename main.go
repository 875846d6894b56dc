package main

import (
	"coinsentry/internal/cli"
)

func main() {
	cli.Execute()
}
