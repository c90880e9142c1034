package main

import (
	"github.com/andr3so7/folio/cmd"
)

func main() {
	cmd.Execute()
}
