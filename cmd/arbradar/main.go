package main

import (
	"github.com/createMonster/arbradar-sub000/internal/cli"
)

func main() {
	cli.Execute()
}
