package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/Alia5/padbridge/input/joystick"
)

type Devices struct {
	All bool `help:"Also list devices that are never bridged" env:"PADBRIDGE_DEVICES_ALL"`
}

// Run is called by Kong when the devices command is executed.
func (d *Devices) Run(logger *slog.Logger, backends JoystickBackendFactory) error {
	backend, closeBackend, err := openBackend(backends, logger)
	if err != nil {
		return err
	}
	defer closeBackend()
	return d.List(os.Stdout, backend)
}

// List writes one line per enumerated device.
func (d *Devices) List(w io.Writer, backend joystick.Backend) error {
	infos, err := backend.Enumerate()
	if err != nil {
		return fmt.Errorf("enumerate joysticks: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "INSTANCE\tNAME\tGUID\tAXES\tSLIDERS\tBUTTONS\tHATS\tFF\tSTATUS")
	for _, info := range infos {
		status := "ok"
		if reason := joystick.Excluded(info); reason != "" {
			if !d.All {
				continue
			}
			status = "excluded: " + reason
		}
		c := info.Capabilities
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			info.InstanceID, info.ProductName, info.ProductGUID,
			c.Axes, c.Sliders, c.Buttons, c.POVs, c.ForceFeedbackActuators, status)
	}
	return tw.Flush()
}
