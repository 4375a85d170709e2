package main

import (
	"github.com/finalitylabs/blocksync/cmd/blocksync/cmd"
)

func main() {
	cmd.Execute()
}
