package config

import "github.com/Alia5/psxpad/internal/cmd"

type Log struct {
	Level   string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"PSXPAD_LOG_LEVEL"`
	Format  string `help:"Log format" enum:"text,json" default:"text" env:"PSXPAD_LOG_FORMAT"`
	File    string `help:"Log file path (stdout/stderr when empty)" env:"PSXPAD_LOG_FILE"`
	RawFile string `help:"Write raw host link and bus traffic to this file" env:"PSXPAD_LOG_RAW_FILE"`
}

type CLI struct {
	Log        Log    `embed:"" prefix:"log."`
	ConfigFile string `name:"config" help:"Configuration file (JSON, YAML or TOML)" env:"PSXPAD_CONFIG"`

	Run       cmd.Run           `cmd:"" help:"Emulate a controller fed by the host link"`
	Probe     cmd.Probe         `cmd:"" help:"Poll a controller through a bus server, like a console"`
	Ports     cmd.Ports         `cmd:"" help:"List serial ports usable as host link"`
	Config    cmd.ConfigCommand `cmd:"" help:"Configuration helpers"`
	Install   cmd.Install       `cmd:"" help:"Install 'psxpad run' as a system service"`
	Uninstall cmd.Uninstall     `cmd:"" help:"Remove the system service"`
}
