package notify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunc(t *testing.T) {
	var got []string
	n := Func(func(m string) { got = append(got, m) })
	n.Notify("Request timed out. Please try again.")
	assert.Equal(t, []string{"Request timed out. Please try again."}, got)

	assert.NotPanics(t, func() { Discard.Notify("ignored") })
}

func TestChannelNotifier_DropsWhenFull(t *testing.T) {
	n := NewChannelNotifier(2)
	n.Notify("a")
	n.Notify("b")
	n.Notify("c")

	assert.Equal(t, "a", <-n.Messages())
	assert.Equal(t, "b", <-n.Messages())
	assert.Equal(t, int64(1), n.Dropped())
}

func TestChannelNotifier_DefaultBuffer(t *testing.T) {
	n := NewChannelNotifier(0)
	assert.Equal(t, 16, cap(n.ch))
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	n.Notify("Session expired. Please login again.")

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `message="Session expired. Please login again."`)
}
