package main

import (
	"fmt"
	"os"

	"github.com/fecworks/fecsync/cmd"
	"github.com/fecworks/fecsync/internal/build"
)

// version is set at release time via -ldflags.
var version = "dev"

func init() {
	build.Version = version
}

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
