// Package notify provides sinks for the user-facing failure messages an
// AuthBridge emits. All sinks are fire-and-forget: Notify never blocks and
// never fails.
package notify

import (
	"log/slog"
	"sync/atomic"
)

// Func adapts a plain function to the Notifier interface.
type Func func(message string)

func (f Func) Notify(message string) {
	if f != nil {
		f(message)
	}
}

// Discard drops every message.
var Discard = Func(nil)

// LogNotifier writes messages to a structured logger at warn level.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("user notification", slog.String("message", message))
}

// ChannelNotifier delivers messages on a buffered channel for a UI loop to
// drain. When the buffer is full the message is dropped and counted.
type ChannelNotifier struct {
	ch      chan string
	dropped atomic.Int64
}

func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelNotifier{ch: make(chan string, buffer)}
}

func (n *ChannelNotifier) Notify(message string) {
	select {
	case n.ch <- message:
	default:
		n.dropped.Add(1)
	}
}

// Messages is the receive side of the notifier.
func (n *ChannelNotifier) Messages() <-chan string {
	return n.ch
}

// Dropped reports how many messages were discarded because the buffer was full.
func (n *ChannelNotifier) Dropped() int64 {
	return n.dropped.Load()
}
