package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger records the bytes exchanged with a virtual controller driver.
type RawLogger interface {
	// Log writes one line. toDriver is true for reports sent to the driver
	// and false for feedback received from it.
	Log(slot int, toDriver bool, data []byte)
}

type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw creates a RawLogger writing to w. A nil w discards everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

func (r *rawLogger) Log(slot int, toDriver bool, data []byte) {
	if r.w == nil || len(data) == 0 {
		return
	}
	dir := "S->C"
	if toDriver {
		dir = "C->S"
	}
	line := fmt.Sprintf("%s slot %d %s %d bytes: % x\n",
		time.Now().Format("2006/01/02 15:04:05.000"), slot, dir, len(data), data)

	r.mu.Lock()
	_, _ = r.w.Write([]byte(line))
	r.mu.Unlock()
}
