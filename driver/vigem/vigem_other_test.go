//go:build !windows

package vigem

import (
	"errors"
	"testing"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/internal/log"

	"github.com/stretchr/testify/assert"
)

func TestUnavailableOffWindows(t *testing.T) {
	d := New(log.Discard(), nil)
	assert.Equal(t, "vigem", d.Name())
	assert.True(t, errors.Is(d.Available(), driver.ErrUnavailable))
	assert.True(t, errors.Is(d.Plugin(0), driver.ErrUnavailable))
	assert.True(t, errors.Is(d.Plugin(4), driver.ErrInvalidSlot))
	assert.True(t, errors.Is(d.Report(1, driver.Report{}), driver.ErrNotPlugged))
	assert.NoError(t, d.Unplug(1))
	assert.NoError(t, d.Close())
}
