package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/input/joystick"
	"github.com/Alia5/padbridge/settings"
)

type Mappings struct {
	List MappingsList `cmd:"" default:"1" help:"List stored mappers"`
	Init MappingsInit `cmd:"" help:"Create default mappers for attached devices"`
}

type MappingsList struct {
	Settings string `help:"Mappings file; defaults to the config directory" env:"PADBRIDGE_SETTINGS"`
}

// Run is called by Kong when the mappings list command is executed.
func (c *MappingsList) Run() error {
	path, err := settingsPath(c.Settings)
	if err != nil {
		return err
	}
	st, err := settings.Load(path)
	if err != nil {
		return err
	}
	return writeMappers(os.Stdout, st)
}

func writeMappers(w io.Writer, st *settings.Settings) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSLOT\tAUTOSTART\tCOMBINE\tMAPPINGS\tDEVICES")
	for _, m := range st.Mappings {
		slot := "-"
		if driver.CheckSlot(m.OutputDevice) == nil {
			slot = fmt.Sprint(m.OutputDevice)
		}
		combine := m.Combine
		if combine == "" {
			combine = "largest"
		}
		var devices []string
		seen := map[string]bool{}
		for _, e := range m.Mappings {
			if !seen[e.Device] {
				seen[e.Device] = true
				devices = append(devices, e.Device)
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%d\t%s\n",
			m.ID, m.Name, slot, m.StartWhenConnected, combine, len(m.Mappings), strings.Join(devices, ","))
	}
	return tw.Flush()
}

type MappingsInit struct {
	Settings  string `help:"Mappings file; defaults to the config directory" env:"PADBRIDGE_SETTINGS"`
	Device    string `arg:"" optional:"" help:"Instance id of the device; all bridgeable devices when empty"`
	Slot      int    `help:"Output slot of the first created mapper, -1 for none" default:"-1"`
	AutoStart bool   `help:"Start the created mappers when their devices connect"`
	Force     bool   `help:"Replace mappers that already exist"`
}

// Run is called by Kong when the mappings init command is executed.
func (c *MappingsInit) Run(logger *slog.Logger, backends JoystickBackendFactory) error {
	backend, closeBackend, err := openBackend(backends, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	path, err := settingsPath(c.Settings)
	if err != nil {
		return err
	}
	st, err := settings.Load(path)
	if err != nil {
		return err
	}
	created, err := c.Apply(st, backend, logger)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		logger.Warn("No mapper created")
		return nil
	}
	if err := st.Save(path); err != nil {
		return err
	}
	logger.Info("Mappers written", "path", path, "ids", created)
	return nil
}

// Apply adds a default mapper to st for every selected device and returns
// the ids written.
func (c *MappingsInit) Apply(st *settings.Settings, backend joystick.Backend, logger *slog.Logger) ([]string, error) {
	infos, err := backend.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("enumerate joysticks: %w", err)
	}

	slot := c.Slot
	var created []string
	matched := false
	for _, info := range infos {
		if c.Device != "" && info.InstanceID != c.Device {
			continue
		}
		matched = true
		if reason := joystick.Excluded(info); reason != "" {
			logger.Info("Skipping device", "device", info.InstanceID, "reason", reason)
			continue
		}
		id := mapperID(info)
		if st.Has(id) && !c.Force {
			logger.Info("Mapper exists, use --force to replace", "id", id)
			continue
		}

		h, err := backend.Open(info)
		if err != nil {
			logger.Warn("Failed to open device", "device", info.InstanceID, "error", err)
			continue
		}
		dev := joystick.NewDevice(info, h, logger)
		m := settings.DefaultMappings(dev, id, info.ProductName)
		_ = dev.Close()

		if driver.CheckSlot(slot) == nil {
			m.SetOutputSlot(slot)
			slot++
		}
		m.SetStartAutomatically(c.AutoStart)
		st.Update(m)
		created = append(created, id)
	}
	if c.Device != "" && !matched {
		return nil, fmt.Errorf("device %q not found", c.Device)
	}
	return created, nil
}

func mapperID(info joystick.Info) string {
	return "auto-" + strings.NewReplacer("/", "-", " ", "-").Replace(info.InstanceID)
}
