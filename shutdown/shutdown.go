package shutdown

import (
	"context"
	"os"
)

// Context returns a context cancelled by the first interrupt or terminate
// signal. A second signal is left to the default handler.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	Notify(ch)
	go func() {
		defer Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
