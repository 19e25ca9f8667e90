package mapper_test

import (
	"testing"

	"github.com/Alia5/padbridge/input"
	th "github.com/Alia5/padbridge/internal/testing"
	"github.com/Alia5/padbridge/mapper"
	"github.com/Alia5/padbridge/xinput"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mappingFor(t *testing.T, ch xinput.Channel, v float64) (*mapper.Mapping, *th.MockDevice) {
	t.Helper()
	dev := th.NewMockDevice("dev", 2, 2, 0)
	dev.Set(th.MockAxisOffset, v)
	require.NoError(t, dev.Poll())
	m := mapper.NewMapping(ch)
	m.Source = dev.Axis(0)
	return m, dev
}

func TestIdentityMapping(t *testing.T) {
	for _, ch := range []xinput.Channel{xinput.LX, xinput.L2} {
		for _, v := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1} {
			m, _ := mappingFor(t, ch, v)
			assert.InDelta(t, v, m.Evaluate(), 1e-12, "channel %s value %v", ch, v)
		}
	}
}

func TestCalibrationScenario(t *testing.T) {
	m, _ := mappingFor(t, xinput.LX, 0.75)
	m.Min, m.Max, m.Deadzone = 0.2, 0.8, 0.05
	assert.InDelta(t, 0.9167, m.Evaluate(), 1e-3)
}

func TestInvertedRange(t *testing.T) {
	m, _ := mappingFor(t, xinput.LX, 0.25)
	m.Min, m.Max = 1, 0
	assert.InDelta(t, 0.75, m.Evaluate(), 1e-12)

	m.Min, m.Max = 0.5, 0.5
	assert.Equal(t, 0.5, m.Evaluate(), "empty range reports neutral")
}

func TestClamp(t *testing.T) {
	m, _ := mappingFor(t, xinput.L2, 0.95)
	m.Min, m.Max = 0.1, 0.9
	assert.Equal(t, 1.0, m.Evaluate())
	m.Min, m.Max = 0.96, 1
	assert.Equal(t, 0.0, m.Evaluate())
}

func TestDeadzone(t *testing.T) {
	const dz = 0.1
	for _, ch := range []xinput.Channel{xinput.LY, xinput.R2} {
		neutral := ch.Neutral()
		for _, off := range []float64{-dz, -0.05, 0, 0.05, dz} {
			v := neutral + off
			if v < 0 {
				continue
			}
			m, _ := mappingFor(t, ch, v)
			m.Deadzone = dz
			assert.Equal(t, neutral, m.Evaluate(), "channel %s value %v", ch, v)
		}
		m, _ := mappingFor(t, ch, neutral+0.2)
		m.Deadzone = dz
		assert.InDelta(t, neutral+0.2, m.Evaluate(), 1e-12)
	}
}

func TestAntiDeadzone(t *testing.T) {
	const adz = 0.2
	for _, v := range []float64{0.01, 0.05, 0.1, 0.19, 0.2, 0.5, 1} {
		m, _ := mappingFor(t, xinput.R2, v)
		m.AntiDeadzone = adz
		assert.GreaterOrEqual(t, m.Evaluate(), adz, "value %v", v)
	}

	m, _ := mappingFor(t, xinput.R2, 0)
	m.AntiDeadzone = adz
	assert.Equal(t, 0.0, m.Evaluate(), "zero stays zero")

	m, _ = mappingFor(t, xinput.LX, 0.45)
	m.AntiDeadzone = adz
	assert.InDelta(t, 0.3, m.Evaluate(), 1e-12, "axis deviation pushed out on its own side")
}

func TestDeadzoneBeforeAntiDeadzone(t *testing.T) {
	m, _ := mappingFor(t, xinput.R2, 0.05)
	m.Deadzone = 0.1
	m.AntiDeadzone = 0.3
	assert.Equal(t, 0.0, m.Evaluate())
}

func TestDisabledMapping(t *testing.T) {
	for _, ch := range xinput.Channels() {
		m := mapper.NewMapping(ch)
		m.Min, m.Max, m.Deadzone, m.AntiDeadzone = 0.3, 0.4, 0.5, 0.9
		assert.Equal(t, ch.DisabledValue(), m.Evaluate(), "channel %s", ch)
	}
}

func TestButtonThreshold(t *testing.T) {
	m, _ := mappingFor(t, xinput.A, 0.6)
	assert.Equal(t, 1.0, m.Evaluate())
	m, _ = mappingFor(t, xinput.A, 0.5)
	assert.Equal(t, 0.0, m.Evaluate())
	m, _ = mappingFor(t, xinput.Up, 0.8)
	m.Min, m.Max = 1, 0
	assert.Equal(t, 0.0, m.Evaluate())
}

func TestCollectionCombine(t *testing.T) {
	dev := th.NewMockDevice("dev", 2, 2, 0)
	dev.Set(th.MockAxisOffset, 0.6)
	dev.Set(th.MockAxisOffset+1, 0.1)
	dev.Set(th.MockButtonOffset+1, 1)
	require.NoError(t, dev.Poll())

	primary := mapper.NewMapping(xinput.LX)
	primary.Source = dev.Axis(0)
	secondary := mapper.NewMapping(xinput.LX)
	secondary.Source = dev.Axis(1)
	disabled := mapper.NewMapping(xinput.LX)

	c := &mapper.Collection{Channel: xinput.LX, Mappings: []*mapper.Mapping{disabled, primary, secondary}}
	assert.InDelta(t, 0.1, c.Value(mapper.CombineLargest), 1e-12)
	assert.InDelta(t, 0.6, c.Value(mapper.CombineFirst), 1e-12)

	c.Mappings = []*mapper.Mapping{secondary, primary}
	assert.InDelta(t, 0.1, c.Value(mapper.CombineLargest), 1e-12, "order does not change the winner")

	a1 := mapper.NewMapping(xinput.A)
	a1.Source = dev.Button(0)
	a2 := mapper.NewMapping(xinput.A)
	a2.Source = dev.Button(1)
	buttons := &mapper.Collection{Channel: xinput.A, Mappings: []*mapper.Mapping{a1, a2}}
	assert.Equal(t, 1.0, buttons.Value(mapper.CombineFirst))

	empty := &mapper.Collection{Channel: xinput.RX}
	assert.Equal(t, 0.5, empty.Value(mapper.CombineLargest))
}

func TestParseCombine(t *testing.T) {
	c, err := mapper.ParseCombine("first")
	require.NoError(t, err)
	assert.Equal(t, mapper.CombineFirst, c)
	c, err = mapper.ParseCombine("")
	require.NoError(t, err)
	assert.Equal(t, mapper.CombineLargest, c)
	_, err = mapper.ParseCombine("avg")
	assert.Error(t, err)
	assert.Equal(t, "largest", mapper.CombineLargest.String())
}

func TestInputMapperAttach(t *testing.T) {
	dev := th.NewMockDevice("pad-1", 2, 1, 0)
	dev.Set(th.MockAxisOffset, 0.8)
	require.NoError(t, dev.Poll())

	m := mapper.New("id-1", "Controller 1")
	assert.Equal(t, mapper.NoOutputSlot, m.OutputSlot())
	m.Add(mapper.Mapping{Channel: xinput.LX, Ref: mapper.SourceRef{Device: "pad-1", Offset: th.MockAxisOffset}, Max: 1})
	m.Add(mapper.Mapping{Channel: xinput.A, Ref: mapper.SourceRef{Device: "gone", Offset: th.MockButtonOffset}, Max: 1})
	m.Add(mapper.Mapping{Channel: xinput.B, Ref: mapper.SourceRef{Device: "pad-1", Offset: 999}, Max: 1})

	assert.Equal(t, 0.5, m.Value(xinput.LX), "unresolved before attach")

	m.Attach([]input.Device{dev})
	assert.InDelta(t, 0.8, m.Value(xinput.LX), 1e-12)
	assert.Equal(t, 0.0, m.Value(xinput.A))
	assert.True(t, m.Mappings(xinput.A)[0].Disabled())
	assert.True(t, m.Mappings(xinput.B)[0].Disabled())

	devices := m.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, "pad-1", devices[0].UniqueID())
	assert.ElementsMatch(t, []string{"pad-1", "gone"}, m.DeviceIDs())

	m.Attach(nil)
	assert.Equal(t, 0.5, m.Value(xinput.LX), "removed device falls back to disabled")
	assert.Empty(t, m.Devices())

	values := m.Values()
	assert.Equal(t, 0.5, values[xinput.LX])
	assert.Equal(t, 0.0, values[xinput.A])
}

func TestInputMapperSettings(t *testing.T) {
	m := mapper.New("id", "name")
	m.SetName("renamed")
	m.SetOutputSlot(2)
	m.SetForceFeedbackDevice("pad")
	m.SetStartAutomatically(true)
	m.SetCombine(mapper.CombineFirst)
	m.SetMappings(xinput.RY, []mapper.Mapping{{Channel: xinput.A, Max: 1}})

	assert.Equal(t, "renamed", m.Name())
	assert.Equal(t, 2, m.OutputSlot())
	assert.Equal(t, "pad", m.ForceFeedbackDevice())
	assert.True(t, m.StartAutomatically())
	assert.Equal(t, mapper.CombineFirst, m.Combine())
	ry := m.Mappings(xinput.RY)
	require.Len(t, ry, 1)
	assert.Equal(t, xinput.RY, ry[0].Channel)
	assert.True(t, ry[0].Disabled())
	assert.Nil(t, m.Mappings(xinput.Channel(-1)))
}
