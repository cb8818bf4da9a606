package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WaitForInterrupt blocks until SIGINT or SIGTERM is received.
func WaitForInterrupt() {
	waitForInterruptContext(context.Background(), nil)
}

// WaitForInterruptWithCallback blocks until an interrupt and then runs callback.
func WaitForInterruptWithCallback(callback func()) {
	waitForInterruptContext(context.Background(), callback)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// waitForInterruptContext lets tests cancel parent instead of sending a real signal.
func waitForInterruptContext(parent context.Context, callback func()) {
	ctx, stop := SignalContext(parent)
	defer stop()

	<-ctx.Done()

	if callback != nil {
		callback()
	}
}
