package mouse_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/input/joystick"
	"github.com/Alia5/padbridge/input/mouse"
	"github.com/Alia5/padbridge/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu      sync.Mutex
	pressed [mouse.ButtonCount]bool
	err     error
	reads   int
}

func (r *fakeReader) Buttons() ([mouse.ButtonCount]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	return r.pressed, r.err
}

func (r *fakeReader) press(i int, v bool) {
	r.mu.Lock()
	r.pressed[i] = v
	r.mu.Unlock()
}

func TestMouseButtons(t *testing.T) {
	r := &fakeReader{}
	d := mouse.NewDevice(r, log.Discard())
	assert.Equal(t, mouse.UniqueID, d.UniqueID())
	require.Len(t, d.Sources(), mouse.ButtonCount)
	assert.Equal(t, "X2", d.Sources()[mouse.X2].Name())

	var events []input.InputChangedEvent
	d.OnInputChanged(func(e input.InputChangedEvent) { events = append(events, e) })

	r.press(mouse.Right, true)
	r.press(mouse.X1, true)
	require.NoError(t, d.Poll())
	require.Len(t, events, 1)
	assert.Len(t, events[0].Sources, 2)
	assert.Equal(t, 1.0, d.Source(joystick.ButtonOffsetBase+mouse.Right).Value())

	require.NoError(t, d.Poll())
	assert.Len(t, events, 1)
}

func TestMouseReadErrorKeepsConnected(t *testing.T) {
	r := &fakeReader{err: errors.New("denied")}
	d := mouse.NewDevice(r, log.Discard())
	assert.NoError(t, d.Poll())
	assert.True(t, d.Connected())
}

func TestMouseLoop(t *testing.T) {
	r := &fakeReader{}
	d := mouse.NewDevice(r, log.Discard())
	d.Start(context.Background())
	r.press(mouse.Left, true)
	assert.Eventually(t, func() bool { return d.Source(joystick.ButtonOffsetBase).Value() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, d.Close())
	assert.True(t, d.Connected())
}
