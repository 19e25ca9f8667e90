package settings_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Alia5/padbridge/input"
	th "github.com/Alia5/padbridge/internal/testing"
	"github.com/Alia5/padbridge/mapper"
	"github.com/Alia5/padbridge/settings"
	"github.com/Alia5/padbridge/xinput"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMapper() *mapper.InputMapper {
	m := mapper.New("m1", "Flight stick")
	m.SetOutputSlot(2)
	m.SetStartAutomatically(true)
	m.SetForceFeedbackDevice("stick")
	m.SetCombine(mapper.CombineFirst)
	m.Add(mapper.Mapping{Channel: xinput.A, Ref: mapper.SourceRef{Device: "stick", Offset: 200}, Min: 0, Max: 1})
	m.Add(mapper.Mapping{Channel: xinput.LX, Ref: mapper.SourceRef{Device: "stick", Offset: 0}, Min: 0.1, Max: 0.9, Deadzone: 0.2, AntiDeadzone: 0.05})
	m.Add(mapper.Mapping{Channel: xinput.LX, Ref: mapper.SourceRef{Device: "wheel", Offset: 2}, Min: 1, Max: 0})
	return m
}

func TestSaveLoadFormats(t *testing.T) {
	for _, ext := range []string{"json", "yaml", "yml", "toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "settings."+ext)

			s := settings.New()
			s.DisableAutoRefresh = true
			s.SetInput("stick", settings.InputSettings{ForceFeedback: false})
			s.Update(sampleMapper())
			require.NoError(t, s.Save(path))

			loaded, err := settings.Load(path)
			require.NoError(t, err)
			assert.True(t, loaded.DisableAutoRefresh)
			assert.False(t, loaded.Input("stick").ForceFeedback)
			assert.True(t, loaded.Input("other").ForceFeedback, "force feedback defaults to on")

			m, err := loaded.CreateMapper("m1")
			require.NoError(t, err)
			assert.Equal(t, "Flight stick", m.Name())
			assert.Equal(t, 2, m.OutputSlot())
			assert.True(t, m.StartAutomatically())
			assert.Equal(t, "stick", m.ForceFeedbackDevice())
			assert.Equal(t, mapper.CombineFirst, m.Combine())

			lx := m.Mappings(xinput.LX)
			require.Len(t, lx, 2, "mapping order is kept")
			assert.Equal(t, mapper.SourceRef{Device: "stick", Offset: 0}, lx[0].Ref)
			assert.InDelta(t, 0.1, lx[0].Min, 1e-9)
			assert.InDelta(t, 0.9, lx[0].Max, 1e-9)
			assert.InDelta(t, 0.2, lx[0].Deadzone, 1e-9)
			assert.InDelta(t, 0.05, lx[0].AntiDeadzone, 1e-9)
			assert.Equal(t, "wheel", lx[1].Ref.Device)
			assert.Len(t, m.Mappings(xinput.A), 1)
			assert.True(t, m.Mappings(xinput.A)[0].Disabled(), "sources resolve only on attach")
		})
	}
}

func TestLoadMissingOutputDevice(t *testing.T) {
	docs := map[string]string{
		"mappings.json": `{"mappings":[{"id":"a","mappings":[]},{"id":"b","outputDevice":0,"mappings":[]}]}`,
		"mappings.yaml": "mappings:\n  - id: a\n  - id: b\n    outputDevice: 0\n",
		"mappings.toml": "[[mappings]]\nid = \"a\"\n\n[[mappings]]\nid = \"b\"\noutputDevice = 0\n",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

			st, err := settings.Load(path)
			require.NoError(t, err)
			require.Len(t, st.Mappings, 2)
			assert.Equal(t, mapper.NoOutputSlot, st.Mappings[0].OutputDevice, "absent slot means none")
			assert.Equal(t, 0, st.Mappings[1].OutputDevice)

			mappers, err := st.Mappers()
			require.NoError(t, err)
			assert.Equal(t, mapper.NoOutputSlot, mappers[0].OutputSlot())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	s, err := settings.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, s.Mappings)
	assert.NotNil(t, s.Inputs)
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := settings.Load("settings.ini")
	assert.True(t, errors.Is(err, settings.ErrUnsupportedFormat))
	assert.True(t, errors.Is(settings.New().Save(filepath.Join(t.TempDir(), "s.txt")), settings.ErrUnsupportedFormat))
}

func TestLoadInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := settings.Load(path)
	assert.Error(t, err)
}

func TestCreateMapperErrors(t *testing.T) {
	s := settings.New()
	_, err := s.CreateMapper("nope")
	assert.True(t, errors.Is(err, settings.ErrUnknownMapper))

	s.Mappings = append(s.Mappings, settings.MapperSettings{
		ID:       "bad",
		Mappings: []settings.MappingSettings{{Channel: "Turbo"}},
	})
	_, err = s.CreateMapper("bad")
	assert.ErrorContains(t, err, "unknown channel")

	_, err = s.Mappers()
	assert.Error(t, err)
}

func TestUpdateReplacesAndRemove(t *testing.T) {
	s := settings.New()
	s.Update(sampleMapper())
	m := sampleMapper()
	m.SetName("Renamed")
	s.Update(m)
	require.Len(t, s.Mappings, 1)
	assert.Equal(t, "Renamed", s.Mappings[0].Name)

	mappers, err := s.Mappers()
	require.NoError(t, err)
	require.Len(t, mappers, 1)

	assert.True(t, s.Remove("m1"))
	assert.False(t, s.Remove("m1"))
	assert.Empty(t, s.Mappings)
}

func TestDefaultMappings(t *testing.T) {
	dev := th.NewMockDevice("pad", 6, 12, 1)
	m := settings.DefaultMappings(dev, "d1", "Pad")

	assert.Equal(t, mapper.NoOutputSlot, m.OutputSlot())
	assert.Equal(t, "pad", m.ForceFeedbackDevice())

	ref := func(ch xinput.Channel) int {
		mps := m.Mappings(ch)
		require.Len(t, mps, 1, ch.String())
		return mps[0].Ref.Offset
	}
	assert.Equal(t, th.MockAxisOffset+0, ref(xinput.LX))
	assert.Equal(t, th.MockAxisOffset+1, ref(xinput.LY))
	assert.Equal(t, th.MockAxisOffset+3, ref(xinput.RX))
	assert.Equal(t, th.MockAxisOffset+4, ref(xinput.RY))
	assert.Equal(t, th.MockAxisOffset+2, ref(xinput.L2))
	assert.Equal(t, th.MockAxisOffset+5, ref(xinput.R2))
	assert.Equal(t, th.MockButtonOffset, ref(xinput.A))
	assert.Equal(t, th.MockButtonOffset+10, ref(xinput.Home))
	assert.Equal(t, input.DPadOffset(0, input.DPadLeft), ref(xinput.Left))

	m.Attach([]input.Device{dev})
	dev.Set(th.MockButtonOffset, 1)
	require.NoError(t, dev.Poll())
	assert.Equal(t, 1.0, m.Value(xinput.A))
}

func TestDefaultMappingsSmallDevice(t *testing.T) {
	dev := th.NewMockDevice("pad", 4, 2, 0)
	m := settings.DefaultMappings(dev, "d1", "Pad")

	assert.Equal(t, th.MockAxisOffset+2, m.Mappings(xinput.RX)[0].Ref.Offset)
	assert.Equal(t, th.MockAxisOffset+3, m.Mappings(xinput.RY)[0].Ref.Offset)
	assert.Empty(t, m.Mappings(xinput.L2))
	assert.Len(t, m.Mappings(xinput.B), 1)
	assert.Empty(t, m.Mappings(xinput.X))
	assert.Empty(t, m.Mappings(xinput.Up))
}
