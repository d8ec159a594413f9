package main

import (
	"os"
	"runtime"
)

func init() {
	// The GL context and window event pump must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
