package doctor

import (
	"fmt"
	"os"

	"listen/shutdown"
)

func exitOnInterrupt() {
	ch := make(chan os.Signal, 1)
	shutdown.Notify(ch)
	go func() {
		<-ch
		resetTerminal()
		fmt.Fprintln(os.Stderr, "\nInterrupted")
		os.Exit(1)
	}()
}
