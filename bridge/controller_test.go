package bridge_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alia5/padbridge/bridge"
	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/internal/log"
	th "github.com/Alia5/padbridge/internal/testing"
	"github.com/Alia5/padbridge/mapper"
	"github.com/Alia5/padbridge/xinput"
	"github.com/Alia5/padbridge/xoutput"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * bridge.TickInterval

func newTestBridge(t *testing.T) (*bridge.Context, *th.MockDriver, *th.MockDevice) {
	t.Helper()
	drv := th.NewMockDriver(nil)
	b := bridge.NewContext(drv, log.Discard())
	dev := th.NewMockDevice("pad", 2, 2, 1)
	require.True(t, b.Inputs.Add(dev))
	t.Cleanup(func() { _ = b.Close() })
	return b, drv, dev
}

func padMapper(id string, slot int) *mapper.InputMapper {
	m := mapper.New(id, "Test "+id)
	m.SetOutputSlot(slot)
	m.Add(mapper.Mapping{Channel: xinput.A, Ref: mapper.SourceRef{Device: "pad", Offset: th.MockButtonOffset}, Max: 1})
	m.Add(mapper.Mapping{Channel: xinput.LX, Ref: mapper.SourceRef{Device: "pad", Offset: th.MockAxisOffset}, Max: 1})
	return m
}

func TestStartWithoutSlot(t *testing.T) {
	b, _, _ := newTestBridge(t)
	c := b.NewController(padMapper("c1", mapper.NoOutputSlot))

	_, err := c.Start(nil)
	assert.True(t, errors.Is(err, bridge.ErrNotStarted))
	assert.True(t, errors.Is(err, bridge.ErrNoOutputSlot))
	assert.Equal(t, bridge.Stopped, c.State())
}

func TestStartWithUnavailableDriver(t *testing.T) {
	drv := th.NewMockDriver(driver.ErrUnavailable)
	b := bridge.NewContext(drv, log.Discard())
	c := b.NewController(padMapper("c1", 0))

	_, err := c.Start(nil)
	assert.True(t, errors.Is(err, bridge.ErrNotStarted))
	assert.True(t, errors.Is(err, bridge.ErrDriverUnavailable))
	assert.False(t, drv.Plugged(0))
}

func TestSlotExclusivity(t *testing.T) {
	b, drv, _ := newTestBridge(t)
	first := b.NewController(padMapper("c1", 2))
	second := b.NewController(padMapper("c2", 2))

	slot, err := first.Start(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, slot)

	_, err = second.Start(nil)
	assert.True(t, errors.Is(err, bridge.ErrNotStarted))
	assert.True(t, errors.Is(err, bridge.ErrSlotInUse))
	assert.Same(t, first, b.Controllers.SlotOwner(2))

	first.Stop()
	assert.Nil(t, b.Controllers.SlotOwner(2))
	_, err = second.Start(nil)
	require.NoError(t, err)
	assert.True(t, drv.Plugged(2))
	second.Stop()
}

func TestStartStopLifecycle(t *testing.T) {
	b, drv, dev := newTestBridge(t)
	c := b.NewController(padMapper("c1", 1))

	var stops atomic.Int32
	slot, err := c.Start(func() { stops.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, 1, slot)
	assert.Equal(t, bridge.Running, c.State())
	assert.True(t, drv.Plugged(1))
	require.NotEmpty(t, drv.Reports(1), "an initial report is sent on start")

	dev.Set(th.MockButtonOffset, 1)
	require.NoError(t, dev.Poll())
	reports := drv.Reports(1)
	assert.Equal(t, uint16(driver.ButtonA), reports[len(reports)-1].Buttons&driver.ButtonA)

	c.Stop()
	c.Stop()
	assert.Equal(t, bridge.Stopped, c.State())
	assert.Equal(t, int32(1), stops.Load())
	assert.False(t, drv.Plugged(1))
	assert.Nil(t, b.Controllers.SlotOwner(1))
	assert.False(t, c.RestartPending())

	n := len(drv.Reports(1))
	dev.Set(th.MockButtonOffset, 0)
	require.NoError(t, dev.Poll())
	time.Sleep(2 * bridge.TickInterval)
	assert.Len(t, drv.Reports(1), n, "no reports after stop")
}

func TestStartWaitsForTeardown(t *testing.T) {
	b, drv, _ := newTestBridge(t)
	c1 := b.NewController(padMapper("c1", 2))
	c2 := b.NewController(padMapper("c2", 2))
	_, err := c1.Start(nil)
	require.NoError(t, err)

	entered, release := drv.HoldNextUnplug()
	defer release()
	stopped := make(chan struct{})
	go func() {
		c1.Stop()
		close(stopped)
	}()
	<-entered
	assert.Equal(t, bridge.Stopping, c1.State())
	assert.Equal(t, mapper.NoOutputSlot, c1.Slot())

	restarted := make(chan error, 1)
	go func() {
		_, err := c1.Start(nil)
		restarted <- err
	}()
	select {
	case err := <-restarted:
		t.Fatalf("Start returned during teardown: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	release()
	<-stopped
	require.NoError(t, <-restarted)
	assert.Equal(t, bridge.Running, c1.State())
	assert.Same(t, c1, b.Controllers.SlotOwner(2))
	assert.True(t, drv.Plugged(2))

	_, err = c2.Start(nil)
	assert.True(t, errors.Is(err, bridge.ErrSlotInUse))
	assert.Equal(t, bridge.Stopped, c2.State())

	dev := b.Inputs.Find("pad").(*th.MockDevice)
	n := len(drv.Reports(2))
	dev.Set(th.MockButtonOffset, 1)
	require.NoError(t, dev.Poll())
	assert.Greater(t, len(drv.Reports(2)), n, "the new session keeps reporting")
	c1.Stop()
}

func TestPeriodicReports(t *testing.T) {
	b, drv, _ := newTestBridge(t)
	c := b.NewController(padMapper("c1", 0))
	_, err := c.Start(nil)
	require.NoError(t, err)
	defer c.Stop()

	assert.Eventually(t, func() bool { return len(drv.Reports(0)) >= 3 }, 5*bridge.TickInterval, 10*time.Millisecond)
}

func TestDisconnectStopsController(t *testing.T) {
	b, drv, dev := newTestBridge(t)
	c := b.NewController(padMapper("c1", 3))

	stopped := make(chan struct{})
	_, err := c.Start(func() { close(stopped) })
	require.NoError(t, err)

	dev.FailNextPoll()
	require.NoError(t, dev.Poll())
	assert.False(t, dev.Connected())

	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("controller did not stop after its device disconnected")
	}
	assert.Equal(t, bridge.Stopped, c.State())
	assert.Nil(t, b.Controllers.SlotOwner(3))
	assert.False(t, drv.Plugged(3))
	assert.True(t, c.RestartPending())

	n := len(drv.Reports(3))
	time.Sleep(2 * bridge.TickInterval)
	assert.Len(t, drv.Reports(3), n)
}

func TestReportFailureStopsController(t *testing.T) {
	b, drv, dev := newTestBridge(t)
	c := b.NewController(padMapper("c1", 0))
	drv.FailReportsAfter(0, 1)

	stopped := make(chan struct{})
	_, err := c.Start(func() { close(stopped) })
	require.NoError(t, err)

	dev.Set(th.MockButtonOffset, 1)
	require.NoError(t, dev.Poll())

	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("controller did not stop after a report failure")
	}
	assert.Equal(t, bridge.Stopped, c.State())
	assert.Nil(t, b.Controllers.SlotOwner(0))
	assert.Len(t, drv.Reports(0), 1)
	assert.False(t, c.RestartPending())
}

func TestFeedbackRouting(t *testing.T) {
	b, drv, dev := newTestBridge(t)
	m := padMapper("c1", 0)
	m.SetForceFeedbackDevice("pad")
	c := b.NewController(m)
	_, err := c.Start(nil)
	require.NoError(t, err)

	drv.SendFeedback(0, driver.Feedback{Large: 255, Small: 51})
	require.Equal(t, [][2]float64{{1, 0.2}}, dev.Feedback())

	c.Stop()
	drv.SendFeedback(0, driver.Feedback{Large: 1, Small: 1})
	assert.Len(t, dev.Feedback(), 1, "feedback is not routed after stop")
}

func TestAutoStart(t *testing.T) {
	drv := th.NewMockDriver(nil)
	b := bridge.NewContext(drv, log.Discard())
	t.Cleanup(func() { _ = b.Close() })

	m := padMapper("c1", 0)
	m.SetStartAutomatically(true)
	c := b.NewController(m)
	manual := b.NewController(padMapper("c2", 1))

	b.AutoStart()
	assert.Equal(t, bridge.Stopped, c.State(), "bound device missing")

	dev := th.NewMockDevice("pad", 2, 2, 0)
	b.Inputs.Add(dev)
	b.Controllers.Rebind(b.Inputs.List())
	b.AutoStart()
	assert.Equal(t, bridge.Running, c.State())
	assert.Equal(t, bridge.Stopped, manual.State())
}

func TestOutputChangedWhileStopped(t *testing.T) {
	b, _, dev := newTestBridge(t)
	c := b.NewController(padMapper("c1", 0))

	var got []xinput.Channel
	unsub := c.OnOutputChanged(func(e xoutput.ChangedEvent) { got = append(got, e.Channels...) })
	defer unsub()

	dev.Set(th.MockButtonOffset, 1)
	require.NoError(t, dev.Poll())
	assert.Equal(t, []xinput.Channel{xinput.A}, got)
	assert.True(t, c.Output().Pressed(xinput.A))
}
