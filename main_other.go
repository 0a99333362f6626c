//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// The window owns the main thread when it is requested.
	for _, arg := range os.Args[1:] {
		if arg == "--gui" || arg == "-gui" {
			execute()
			return
		}
	}
	mainthread.Init(execute)
}
