package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Alia5/padbridge/internal/configpaths"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit writes the flags of a command, with their defaults, as a
// config file that the loaders in main pick up.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"run,devices" default:"run"`
	Format  string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Output  string `help:"Destination file path (defaults to config.<format> in the working directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run is called by Kong when the config init command is executed.
func (c *ConfigInit) Run(logger *slog.Logger) error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", c.Format)
	}
	root, err := templateFor(c.Command)
	if err != nil {
		return err
	}
	data, err := encodeTemplate(format, root)
	if err != nil {
		return err
	}

	dest := c.Output
	if dest == "" {
		dest = "config." + format
	}
	if _, err := os.Stat(dest); err == nil && !c.Force {
		return fmt.Errorf("%s exists; use --force to overwrite", dest)
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	logger.Info("Configuration template written", "command", c.Command, "path", dest)
	return nil
}

func templateFor(command string) (map[string]any, error) {
	switch command {
	case "run":
		return flagTemplate(reflect.TypeFor[Run]()), nil
	case "devices":
		return flagTemplate(reflect.TypeFor[Devices]()), nil
	default:
		return nil, errors.New("unknown command; expected 'run' or 'devices'")
	}
}

func encodeTemplate(format string, root map[string]any) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(root)
	case "toml":
		return toml.Marshal(root)
	default:
		return json.MarshalIndent(root, "", "  ")
	}
}

func normalizeFormat(f string) string {
	switch f = strings.ToLower(f); f {
	case "json", "toml":
		return f
	case "yaml", "yml":
		return "yaml"
	default:
		return ""
	}
}

func lowerCamel(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// flagTemplate maps every flag of t to its default value. Embedded groups
// become nested maps named after their prefix; commands and positional
// arguments are skipped.
func flagTemplate(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]any{}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous || f.Tag.Get("kong") == "-" {
			continue
		}
		if _, ok := f.Tag.Lookup("cmd"); ok {
			continue
		}
		if _, ok := f.Tag.Lookup("arg"); ok {
			continue
		}
		if _, ok := f.Tag.Lookup("embed"); ok {
			sub := flagTemplate(f.Type)
			if name := strings.TrimRight(f.Tag.Get("prefix"), ".-"); name != "" {
				out[name] = sub
			} else {
				maps.Copy(out, sub)
			}
			continue
		}
		if v, ok := templateValue(f.Type, f.Tag.Get("default")); ok {
			out[lowerCamel(f.Name)] = v
		}
	}
	return out
}

// templateValue parses def as a value of t. Unparsable defaults fall back to
// the zero value.
func templateValue(t reflect.Type, def string) (any, bool) {
	if t == reflect.TypeFor[time.Duration]() {
		if def == "" {
			def = "0s"
		}
		return def, true
	}
	switch t.Kind() {
	case reflect.String:
		return def, true
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, _ := strconv.ParseUint(def, 10, 64)
		return n, true
	case reflect.Float32, reflect.Float64:
		f, _ := strconv.ParseFloat(def, 64)
		return f, true
	case reflect.Struct:
		return flagTemplate(t), true
	default:
		return nil, false
	}
}
