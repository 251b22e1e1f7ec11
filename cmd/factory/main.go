package main

import (
	"os"
)

// main 是应用程序的主入口
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
