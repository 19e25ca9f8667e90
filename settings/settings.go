// Package settings persists mappers and per-device options as JSON, YAML or
// TOML, chosen by file extension.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Alia5/padbridge/internal/configpaths"
	"github.com/Alia5/padbridge/mapper"
	"github.com/Alia5/padbridge/xinput"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported settings format")
	ErrUnknownMapper     = errors.New("unknown mapper")
)

type InputSettings struct {
	ForceFeedback bool `json:"forceFeedback" yaml:"forceFeedback" toml:"forceFeedback"`
}

type MappingSettings struct {
	Channel      string  `json:"channel" yaml:"channel" toml:"channel"`
	Device       string  `json:"device" yaml:"device" toml:"device"`
	Source       int     `json:"source" yaml:"source" toml:"source"`
	Min          float64 `json:"min" yaml:"min" toml:"min"`
	Max          float64 `json:"max" yaml:"max" toml:"max"`
	Deadzone     float64 `json:"deadzone" yaml:"deadzone" toml:"deadzone"`
	AntiDeadzone float64 `json:"antiDeadzone" yaml:"antiDeadzone" toml:"antiDeadzone"`
}

type MapperSettings struct {
	ID                  string            `json:"id" yaml:"id" toml:"id"`
	Name                string            `json:"name" yaml:"name" toml:"name"`
	OutputDevice        int               `json:"outputDevice" yaml:"outputDevice" toml:"outputDevice" default:"-1"`
	StartWhenConnected  bool              `json:"startWhenConnected" yaml:"startWhenConnected" toml:"startWhenConnected"`
	ForceFeedbackDevice string            `json:"forceFeedbackDevice,omitempty" yaml:"forceFeedbackDevice,omitempty" toml:"forceFeedbackDevice,omitempty"`
	Combine             string            `json:"combine,omitempty" yaml:"combine,omitempty" toml:"combine,omitempty"`
	Mappings            []MappingSettings `json:"mappings" yaml:"mappings" toml:"mappings"`
}

// UnmarshalJSON leaves OutputDevice at mapper.NoOutputSlot when the key is
// missing.
func (m *MapperSettings) UnmarshalJSON(data []byte) error {
	type plain MapperSettings
	p := plain{OutputDevice: mapper.NoOutputSlot}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = MapperSettings(p)
	return nil
}

// UnmarshalYAML leaves OutputDevice at mapper.NoOutputSlot when the key is
// missing. TOML uses the default tag instead.
func (m *MapperSettings) UnmarshalYAML(value *yaml.Node) error {
	type plain MapperSettings
	p := plain{OutputDevice: mapper.NoOutputSlot}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*m = MapperSettings(p)
	return nil
}

// Settings is the persisted document.
type Settings struct {
	DisableAutoRefresh bool                     `json:"disableAutoRefresh" yaml:"disableAutoRefresh" toml:"disableAutoRefresh"`
	Inputs             map[string]InputSettings `json:"inputs" yaml:"inputs" toml:"inputs"`
	Mappings           []MapperSettings         `json:"mappings" yaml:"mappings" toml:"mappings"`
}

func New() *Settings {
	return &Settings{Inputs: map[string]InputSettings{}}
}

// Format returns "json", "yaml" or "toml" for path.
func Format(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads path. A missing file yields empty settings.
func Load(path string) (*Settings, error) {
	format, err := Format(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}

	s := New()
	switch format {
	case "json":
		err = json.Unmarshal(data, s)
	case "yaml":
		err = yaml.Unmarshal(data, s)
	case "toml":
		err = toml.Unmarshal(data, s)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Inputs == nil {
		s.Inputs = map[string]InputSettings{}
	}
	return s, nil
}

// Save writes s to path, creating its directory.
func (s *Settings) Save(path string) error {
	format, err := Format(path)
	if err != nil {
		return err
	}
	var data []byte
	switch format {
	case "json":
		data, err = json.MarshalIndent(s, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(s)
	case "toml":
		data, err = toml.Marshal(s)
	}
	if err != nil {
		return err
	}
	if err := configpaths.EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Input returns the options of device id. Force feedback defaults to on.
func (s *Settings) Input(id string) InputSettings {
	if in, ok := s.Inputs[id]; ok {
		return in
	}
	return InputSettings{ForceFeedback: true}
}

func (s *Settings) SetInput(id string, in InputSettings) {
	if s.Inputs == nil {
		s.Inputs = map[string]InputSettings{}
	}
	s.Inputs[id] = in
}

func (s *Settings) find(id string) int {
	return slices.IndexFunc(s.Mappings, func(m MapperSettings) bool { return m.ID == id })
}

func (s *Settings) Has(id string) bool { return s.find(id) >= 0 }

// CreateMapper builds the mapper stored under id. Its sources stay disabled
// until it is attached to devices.
func (s *Settings) CreateMapper(id string) (*mapper.InputMapper, error) {
	idx := s.find(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMapper, id)
	}
	ms := s.Mappings[idx]

	combine, err := mapper.ParseCombine(ms.Combine)
	if err != nil {
		return nil, fmt.Errorf("mapper %s: %w", id, err)
	}
	m := mapper.New(ms.ID, ms.Name)
	m.SetOutputSlot(ms.OutputDevice)
	m.SetStartAutomatically(ms.StartWhenConnected)
	m.SetForceFeedbackDevice(ms.ForceFeedbackDevice)
	m.SetCombine(combine)
	for _, e := range ms.Mappings {
		ch, err := xinput.ParseChannel(e.Channel)
		if err != nil {
			return nil, fmt.Errorf("mapper %s: %w", id, err)
		}
		m.Add(mapper.Mapping{
			Channel:      ch,
			Ref:          mapper.SourceRef{Device: e.Device, Offset: e.Source},
			Min:          e.Min,
			Max:          e.Max,
			Deadzone:     e.Deadzone,
			AntiDeadzone: e.AntiDeadzone,
		})
	}
	return m, nil
}

// Mappers builds every stored mapper in order.
func (s *Settings) Mappers() ([]*mapper.InputMapper, error) {
	out := make([]*mapper.InputMapper, 0, len(s.Mappings))
	for _, ms := range s.Mappings {
		m, err := s.CreateMapper(ms.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Update stores m, replacing any mapper with the same id.
func (s *Settings) Update(m *mapper.InputMapper) {
	ms := MapperSettings{
		ID:                  m.ID(),
		Name:                m.Name(),
		OutputDevice:        m.OutputSlot(),
		StartWhenConnected:  m.StartAutomatically(),
		ForceFeedbackDevice: m.ForceFeedbackDevice(),
		Combine:             m.Combine().String(),
		Mappings:            []MappingSettings{},
	}
	for _, ch := range xinput.Channels() {
		for _, mp := range m.Mappings(ch) {
			ms.Mappings = append(ms.Mappings, MappingSettings{
				Channel:      ch.String(),
				Device:       mp.Ref.Device,
				Source:       mp.Ref.Offset,
				Min:          mp.Min,
				Max:          mp.Max,
				Deadzone:     mp.Deadzone,
				AntiDeadzone: mp.AntiDeadzone,
			})
		}
	}
	if idx := s.find(ms.ID); idx >= 0 {
		s.Mappings[idx] = ms
		return
	}
	s.Mappings = append(s.Mappings, ms)
}

// Remove deletes the mapper stored under id.
func (s *Settings) Remove(id string) bool {
	idx := s.find(id)
	if idx < 0 {
		return false
	}
	s.Mappings = slices.Delete(s.Mappings, idx, idx+1)
	return true
}
