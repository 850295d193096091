package main

import (
	"os"
)

func main() {
	if err := newRootCommand(newApp(os.Stdout)).Execute(); err != nil {
		os.Exit(1)
	}
}
