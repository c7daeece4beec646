package main

import (
	"fmt"
	"os"

	"github.com/sokinpui/smartedit"
)

func main() {
	if err := smartedit.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
