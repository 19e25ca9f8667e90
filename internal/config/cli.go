// Package config holds the root command line of padbridge.
package config

import "github.com/Alia5/padbridge/internal/cmd"

type Log struct {
	Level   string `help:"Log level" default:"info" enum:"trace,debug,info,warn,error" env:"PADBRIDGE_LOG_LEVEL"`
	File    string `help:"Also write logs to this file" env:"PADBRIDGE_LOG_FILE"`
	RawFile string `help:"Write hex dumps of driver traffic to this file" env:"PADBRIDGE_LOG_RAW_FILE"`
	Format  string `help:"Log format" default:"text" enum:"text,json" env:"PADBRIDGE_LOG_FORMAT"`
}

type CLI struct {
	Config string `help:"Configuration file (json, yaml or toml)" env:"PADBRIDGE_CONFIG"`
	Log    Log    `embed:"" prefix:"log."`

	Run       cmd.Run           `cmd:"" default:"withargs" help:"Bridge physical devices to virtual controllers"`
	Devices   cmd.Devices       `cmd:"" help:"List physical input devices"`
	Mappings  cmd.Mappings      `cmd:"" help:"Inspect and create mappings"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
	Service   cmd.Service       `cmd:"" help:"Manage the background service (Linux)"`
}
